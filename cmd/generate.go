package cmd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mdresch/requirements-gathering-agent/internal/fallback"
	"github.com/mdresch/requirements-gathering-agent/internal/library"
	"github.com/mdresch/requirements-gathering-agent/internal/provider"
	"github.com/mdresch/requirements-gathering-agent/internal/resilience"
	"github.com/mdresch/requirements-gathering-agent/internal/runlog"
	"github.com/mdresch/requirements-gathering-agent/internal/ui"
)

var (
	genRoot      string
	genOutput    string
	genYes       bool
	genMaxOutput int
	genTimeout   time.Duration
)

var generateCmd = &cobra.Command{
	Use:   "generate [doc-type]",
	Short: "Generate a project document from the project's files",
	Long: `generate loads the project library, fits it to the active provider's
context window and asks the provider to write the document. Provider calls
are retried with backoff and guarded by a per-provider circuit breaker.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&genRoot, "root", "r", ".", "project root to load")
	f.StringVarP(&genOutput, "output", "o", "", "write the document to this file")
	f.BoolVarP(&genYes, "yes", "y", false, "do not ask before generating from heavily reduced context")
	f.IntVar(&genMaxOutput, "max-output", 4096, "maximum tokens to generate")
	f.DurationVar(&genTimeout, "timeout", 10*time.Minute, "overall deadline including retries")
}

const systemPrompt = `You are a senior business analyst and project manager. Write the requested
document in Markdown, grounded only in the project material provided. Use clear
headings and keep assumptions explicit.`

func userPrompt(docType, material string) string {
	return fmt.Sprintf("Write a %s document for this project.\n\n%s", docType, material)
}

func runGenerate(cmd *cobra.Command, args []string) (err error) {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	docType := ""
	if len(args) == 1 {
		docType = args[0]
	} else if docType, err = selectDocType(a.cfg.Fallback.DocumentTypes); err != nil {
		return err
	}
	docType = fallback.NormalizeDocumentType(docType)

	ctx, cancel := context.WithTimeout(cmd.Context(), genTimeout)
	defer cancel()

	started := time.Now()
	rec := &runlog.Record{DocumentType: docType}
	store, storeErr := runlog.NewStore(a.fs, genRoot)
	if storeErr != nil {
		a.logger.Warn("run log disabled", "error", storeErr)
	}
	defer func() {
		if store == nil {
			return
		}
		rec.Duration = time.Since(started)
		rec.Status = runlog.StatusSucceeded
		if err != nil {
			rec.Status = runlog.StatusFailed
			rec.Error = err.Error()
			if errors.Is(err, errAborted) || errors.Is(err, context.Canceled) {
				rec.Status = runlog.StatusCancelled
			}
		}
		if saveErr := store.Save(rec); saveErr != nil {
			a.logger.Warn("failed to save run log", "error", saveErr)
		}
	}()

	reg, clients := a.providers(ctx)
	current, ok := a.cfg.Provider("")
	if !ok {
		return errors.New("no active provider configured; set providers in ~/.rga/config.yaml or pass --host")
	}
	p, ok := clients[current.Name]
	if !ok {
		return fmt.Errorf("provider %s is not available", current.Name)
	}

	lib, err := a.loadLibrary(ctx, genRoot, nil)
	if err != nil {
		return err
	}
	rec.Library = &runlog.LibraryStats{
		Files:     lib.TotalFiles,
		Tokens:    lib.TotalTokens,
		Ceiling:   lib.Ceiling,
		Skipped:   len(lib.Skipped),
		Truncated: lib.Truncated,
	}

	format, err := library.ParseFormat(a.cfg.Library.Format)
	if err != nil {
		return err
	}
	content, err := library.Render(lib, format, library.RenderOptions{Estimator: a.est})
	if err != nil {
		return err
	}

	window, _ := reg.GetMaxWindow(current.Name, p.Info().Model)
	overhead := a.est.Estimate(systemPrompt + userPrompt(docType, ""))
	target := contextTarget(window, overhead)
	if target <= 0 {
		return fmt.Errorf("provider %s window of %d tokens leaves no room for context", current.Name, window)
	}

	res, err := a.engine(reg).Apply(ctx, content, docType, target, fallback.Options{
		CurrentProvider: current.Name,
		CurrentModel:    p.Info().Model,
		MinWindow:       requiredWindow(a.est.Estimate(content), overhead),
	})
	if err != nil {
		return err
	}
	rec.Fallback = fallbackStats(res)
	if res.Strategy != fallback.StrategyNone {
		fmt.Fprint(a.errOut, ui.FallbackSummary(res))
	}
	if !res.Success {
		return res.Err()
	}

	if res.Provider != nil {
		switched, ok := clients[res.Provider.Name]
		if !ok {
			return fmt.Errorf("provider %s is not available", res.Provider.Name)
		}
		p = switched
	}
	if res.RequiresConfirmation && !genYes {
		if err := confirmReduction(res.ReductionPercentage(), res.Strategy); err != nil {
			return err
		}
	}

	info := p.Info()
	rec.Provider, rec.Model = info.Name, info.Model

	retry := resilience.NewManager(resilience.WithLogger(a.logger))
	attempts := 0
	sp := a.spinner()
	sp.Start(fmt.Sprintf("Generating %s with %s", docType, info.Name))
	resp, err := resilience.Execute(ctx, retry, "generate "+docType, info.Name, a.cfg.Retry,
		func(ctx context.Context) (*provider.Response, error) {
			attempts++
			return p.Generate(ctx, provider.GenerateRequest{
				System:    systemPrompt,
				Prompt:    userPrompt(docType, res.ProcessedContent),
				MaxTokens: genMaxOutput,
			})
		})
	sp.Stop()

	st := retry.State(info.Name)
	rec.Breaker = &runlog.BreakerStats{State: string(st.State), Failures: st.Failures, Attempts: attempts}
	if err != nil {
		if resilience.IsCircuitOpen(err) {
			fmt.Fprint(a.errOut, ui.Warn("provider "+info.Name+" is failing; try another with --provider"))
		}
		return err
	}
	rec.Usage = &runlog.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	if genOutput != "" {
		if err := writeOutput(a, genOutput, resp.Content); err != nil {
			return err
		}
		fmt.Fprint(a.errOut, ui.Note("wrote "+genOutput))
		return nil
	}
	fmt.Fprintln(a.out, a.markdown().Render(resp.Content))
	return nil
}

// contextTarget is the share of window left for project material once the
// reply headroom and the prompt overhead are taken out.
func contextTarget(window, overhead int) int {
	return int(float64(window)*library.CeilingRatio) - overhead
}

// requiredWindow is the smallest window whose contextTarget holds
// contextTokens.
func requiredWindow(contextTokens, overhead int) int {
	w := int(math.Ceil(float64(contextTokens+overhead) / library.CeilingRatio))
	for contextTarget(w, overhead) < contextTokens {
		w++
	}
	return w
}

func fallbackStats(res *fallback.Result) *runlog.FallbackStats {
	s := &runlog.FallbackStats{
		Strategy:       string(res.Strategy),
		OriginalTokens: res.OriginalTokens,
		FinalTokens:    res.FinalTokens,
		TargetTokens:   res.TargetTokens,
		Reduction:      res.ReductionPercentage(),
		Warnings:       res.Warnings,
		Errors:         res.Errors,
	}
	if res.Provider != nil {
		s.SwitchedTo = res.Provider.Name
	}
	return s
}

func writeOutput(a *app, path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := a.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(a.fs, path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
