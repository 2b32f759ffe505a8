package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const maskedSecret = "********"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the merged configuration (defaults, config file, environment and
flags) as YAML. API keys are masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showPath {
			path := viper.ConfigFileUsed()
			if path == "" {
				path = "(none)"
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		}

		data, err := yaml.Marshal(maskSecrets(viper.AllSettings()))
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var showPath bool

func init() {
	configCmd.Flags().BoolVar(&showPath, "path", false, "print the config file in use and exit")
}

// maskSecrets replaces non-empty key and api_key values at any depth.
func maskSecrets(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isSecretKey(k) {
				if s, ok := val.(string); ok && s != "" {
					out[k] = maskedSecret
					continue
				}
			}
			out[k] = maskSecrets(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = maskSecrets(val)
		}
		return out
	default:
		return v
	}
}

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	return k == "key" || k == "api_key" || strings.HasSuffix(k, "_token")
}
