package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdresch/requirements-gathering-agent/internal/fallback"
	"github.com/mdresch/requirements-gathering-agent/internal/ui"
)

var (
	fitDocType string
	fitTarget  int
	fitOutput  string
)

var fitCmd = &cobra.Command{
	Use:   "fit <file|->",
	Short: "Fit a context file into a token target with the fallback strategies",
	Args:  cobra.ExactArgs(1),
	RunE:  runFit,
}

func init() {
	f := fitCmd.Flags()
	f.StringVarP(&fitDocType, "doc-type", "d", fallback.DefaultProfile, "document type whose profile guides reduction")
	f.IntVarP(&fitTarget, "target", "t", 0, "token target (default: active provider window)")
	f.StringVarP(&fitOutput, "output", "o", "", "write the processed context to this file")
}

func runFit(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	content, err := readInput(a.fs, args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	reg, _ := a.providers(ctx)

	target := fitTarget
	current, _ := a.cfg.Provider("")
	if target <= 0 {
		w, ok := reg.GetMaxWindow(current.Name, current.Model)
		if !ok {
			return errors.New("no --target given and no active provider configured")
		}
		target = w
	}

	res, err := a.engine(reg).Apply(ctx, content, fitDocType, target, fallback.Options{
		CurrentProvider: current.Name,
		CurrentModel:    current.Model,
	})
	if err != nil {
		return err
	}
	fmt.Fprint(a.errOut, ui.FallbackSummary(res))
	if !res.Success {
		return res.Err()
	}

	if fitOutput == "" {
		return nil
	}
	if err := writeOutput(a, fitOutput, res.ProcessedContent); err != nil {
		return err
	}
	fmt.Fprint(a.errOut, ui.Note("wrote "+fitOutput))
	return nil
}
