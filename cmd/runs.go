package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdresch/requirements-gathering-agent/internal/runlog"
	"github.com/mdresch/requirements-gathering-agent/internal/ui"
)

var (
	runsRoot  string
	runsPrune int
)

var runsCmd = &cobra.Command{
	Use:   "runs [id]",
	Short: "List recorded generation runs or show one as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsRoot, "root", ".", "project root holding .rga/runs")
	runsCmd.Flags().IntVar(&runsPrune, "prune", -1, "keep only the newest N runs")
}

func runRuns(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	store, err := runlog.NewStore(a.fs, runsRoot)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		rec, err := store.Get(args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, string(data))
		return nil
	}

	if runsPrune >= 0 {
		n, err := store.Prune(runsPrune)
		if err != nil {
			return err
		}
		fmt.Fprint(a.errOut, ui.Note(fmt.Sprintf("removed %d runs", n)))
	}

	runs, err := store.List()
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, ui.RunList(runs))
	return nil
}
