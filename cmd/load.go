package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdresch/requirements-gathering-agent/internal/library"
	"github.com/mdresch/requirements-gathering-agent/internal/ui"
)

var (
	loadFormat    string
	loadMaxTokens int
	loadBudget    int
	loadInclude   []string
	loadExclude   []string
	loadNoRecent  bool
	loadStats     bool
)

var loadCmd = &cobra.Command{
	Use:   "load [root]",
	Short: "Pack a project into a bounded context and print it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLoad,
}

func init() {
	f := loadCmd.Flags()
	f.StringVarP(&loadFormat, "format", "f", "", "context format: structured, concatenated or summarized")
	f.IntVar(&loadMaxTokens, "max-tokens", 0, "token budget; 90% of it is usable")
	f.IntVar(&loadBudget, "budget", 0, "cap the rendered context at this many tokens")
	f.StringSliceVar(&loadInclude, "include", nil, "only load paths matching these globs")
	f.StringSliceVar(&loadExclude, "exclude", nil, "skip paths matching these globs")
	f.BoolVar(&loadNoRecent, "no-recent", false, "do not prefer recently modified files on near ties")
	f.BoolVar(&loadStats, "stats", false, "print library statistics instead of the context")
}

func rootArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func runLoad(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	lib, err := a.loadLibrary(cmd.Context(), rootArg(args), func(o *library.Options) {
		if loadMaxTokens > 0 {
			o.MaxTokens = loadMaxTokens
		}
		if len(loadInclude) > 0 {
			o.Include = loadInclude
		}
		if len(loadExclude) > 0 {
			o.Exclude = append(o.Exclude, loadExclude...)
		}
		if loadNoRecent {
			o.PrioritizeRecent = false
		}
	})
	if err != nil {
		return err
	}

	if loadStats {
		fmt.Fprint(a.out, ui.LibrarySummary(lib))
		return nil
	}

	name := loadFormat
	if name == "" {
		name = a.cfg.Library.Format
	}
	format, err := library.ParseFormat(name)
	if err != nil {
		return err
	}
	out, err := library.Render(lib, format, library.RenderOptions{TokenBudget: loadBudget, Estimator: a.est})
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, out)
	return nil
}
