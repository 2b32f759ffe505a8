package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/mdresch/requirements-gathering-agent/internal/config"
	"github.com/mdresch/requirements-gathering-agent/internal/discovery"
	"github.com/mdresch/requirements-gathering-agent/internal/fallback"
	"github.com/mdresch/requirements-gathering-agent/internal/library"
	"github.com/mdresch/requirements-gathering-agent/internal/logging"
	"github.com/mdresch/requirements-gathering-agent/internal/provider"
	"github.com/mdresch/requirements-gathering-agent/internal/tokens"
	"github.com/mdresch/requirements-gathering-agent/internal/ui"
)

// app holds the services one command invocation needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	est    tokens.Estimator
	fs     afero.Fs
	out    io.Writer
	errOut io.Writer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.Setup(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	est, err := cfg.Estimator()
	if err != nil {
		logger.Warn("tokenizer unavailable, using character estimate", "tokenizer", cfg.Tokenizer, "error", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		est:    est,
		fs:     afero.NewOsFs(),
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
	}, nil
}

func (a *app) loader() *library.Loader {
	explorer := discovery.NewExplorer(a.fs, discovery.Options{MaxDepth: a.cfg.Library.MaxDepth})
	return library.NewLoader(a.fs, a.est,
		library.WithDiscoverer(explorer),
		library.WithDependencyExtractor(discovery.ExtractDependencies),
		library.WithLogger(a.logger))
}

func (a *app) engine(reg fallback.CapabilityRegistry) *fallback.Engine {
	opts := append(a.cfg.Fallback.EngineOptions(), fallback.WithLogger(a.logger))
	return fallback.NewEngine(a.est, reg, opts...)
}

func (a *app) spinner() *ui.Spinner {
	return ui.NewSpinner(a.errOut, !noSpinner && isTerminal(a.errOut))
}

func (a *app) markdown() *ui.Markdown {
	return ui.NewMarkdown(ui.DefaultWordWrap, !noColor && isTerminal(a.out))
}

// isTerminal reports whether w is an interactive terminal. Buffers and
// pipes never are.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// loadLibrary discovers and loads root with the configured options plus
// any command-line overrides applied by mutate.
func (a *app) loadLibrary(ctx context.Context, root string, mutate func(*library.Options)) (*library.Library, error) {
	opts, err := a.cfg.Library.Options()
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(&opts)
	}

	sp := a.spinner()
	sp.Start("Loading project library from " + root)
	lib, err := a.loader().LoadProject(ctx, root, opts)
	sp.Stop()
	return lib, err
}

// providers builds every configured provider and registers its window.
// Providers that cannot be created are logged and left out.
func (a *app) providers(ctx context.Context) (*provider.Registry, map[string]provider.Provider) {
	reg := provider.NewRegistry()
	clients := make(map[string]provider.Provider, len(a.cfg.Providers))

	for _, pc := range a.cfg.Providers {
		p, err := provider.New(ctx, pc.Name, pc.Host, pc.Vendor, pc.APIKey)
		if err != nil {
			a.logger.Warn("skipping provider", "provider", pc.Name, "error", err)
			continue
		}
		if pc.Model != "" {
			p.SetModel(pc.Model)
		} else if models, err := p.DetectModels(ctx); err != nil {
			a.logger.Warn("model detection failed", "provider", pc.Name, "error", err)
		} else if len(models) > 0 {
			p.SetModel(models[0])
		}

		c := reg.RegisterProvider(ctx, p, pc.ContextWindow)
		a.logger.Debug("provider registered", "provider", c.Name, "model", c.Model, "window", c.ContextWindow)
		clients[pc.Name] = p
	}
	return reg, clients
}

func readInput(fs afero.Fs, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
