package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdresch/requirements-gathering-agent/internal/ui"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers and their detected context windows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		if len(a.cfg.Providers) == 0 {
			fmt.Fprint(a.errOut, ui.Warn("no providers configured; set providers in ~/.rga/config.yaml or pass --host"))
			return nil
		}

		sp := a.spinner()
		sp.Start("Detecting provider capabilities")
		reg, _ := a.providers(cmd.Context())
		sp.Stop()

		fmt.Fprint(a.out, ui.ProviderTable(reg.List(), a.cfg.ActiveProvider, nil))
		return nil
	},
}
