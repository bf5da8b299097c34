package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tunveil/internal/core/types"
)

var modeCmd = &cobra.Command{
	Use:   "mode [Global|NonGlobal]",
	Short: "Show or set the routing mode",
	Long: `Show or set the routing mode.

Global routes everything through the proxy. NonGlobal splits routing so
regional and private traffic goes direct; it needs the geo databases
(tunveil geo update) and silently behaves like Global without them.

Changing the mode while connected restarts the tunnel so the new rules
take effect.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(args) == 0 {
			mode := string(types.VPNModeNonGlobal)
			if v, err := appInstance.Store.GetSetting(ctx, types.PrefVPNMode); err == nil && v != "" {
				mode = v
			}
			fmt.Println(mode)
			return nil
		}

		mode := types.VPNMode(args[0])
		if !mode.Valid() {
			return fmt.Errorf("unknown mode %q (use Global or NonGlobal)", args[0])
		}
		if err := appInstance.Store.SetSetting(ctx, types.PrefVPNMode, string(mode)); err != nil {
			return err
		}
		fmt.Printf("Mode set to %s\n", mode)

		if appInstance.Orchestrator.Session().Status.Active() {
			fmt.Println("Restarting tunnel to apply the new mode...")
			return appInstance.Orchestrator.Restart(ctx)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modeCmd)
}
