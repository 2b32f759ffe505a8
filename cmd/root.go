package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mdresch/requirements-gathering-agent/internal/config"
)

var (
	cfgFile   string
	host      string
	apiKey    string
	model     string
	vendor    string
	active    string
	logLevel  string
	logFormat string
	noSpinner bool
	noColor   bool
	Version   = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "rga",
	Version: Version,
	Short:   "Requirements gathering agent",
	Long: `rga packs a project's files into a model's context window, fits the
result to the selected provider and generates project management documents
with retries and per-provider circuit breakers.`,
	SilenceUsage: true,
}

// Execute runs the root command; ctx cancels in-flight provider calls.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rga/config.yaml)")
	flags.StringVar(&host, "host", "", "LLM server URL for a single unnamed provider")
	flags.StringVar(&apiKey, "key", "", "API key (optional for local servers)")
	flags.StringVar(&model, "model", "", "model name (auto-detected when empty)")
	flags.StringVar(&vendor, "vendor", "", "LLM vendor (auto, vllm, ollama, llama.cpp, openai)")
	flags.StringVarP(&active, "provider", "p", "", "configured provider to use")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "", "log format (text, json)")
	flags.BoolVar(&noSpinner, "no-spinner", false, "disable spinner animations")
	flags.BoolVar(&noColor, "no-color", false, "print documents without markdown styling")

	viper.BindPFlag("host", flags.Lookup("host"))
	viper.BindPFlag("key", flags.Lookup("key"))
	viper.BindPFlag("model", flags.Lookup("model"))
	viper.BindPFlag("vendor", flags.Lookup("vendor"))
	viper.BindPFlag("active_provider", flags.Lookup("provider"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_format", flags.Lookup("log-format"))

	rootCmd.AddCommand(loadCmd, fitCmd, generateCmd, providersCmd, runsCmd, configCmd)
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".rga"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Error reading config %s: %v\n", cfgFile, err)
			os.Exit(1)
		}
	}
}
