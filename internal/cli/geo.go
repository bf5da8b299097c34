package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tunveil/internal/core/types"
	"tunveil/internal/geo"
)

var geoCmd = &cobra.Command{
	Use:   "geo",
	Short: "Manage the geo databases used for split routing",
}

// tunnelRestarter is the slice of the orchestrator the geo commands need.
type tunnelRestarter interface {
	Session() types.TunnelSession
	Restart(ctx context.Context) error
}

// restartAfterGeoChange cycles the tunnel when one is active, so the
// routing rules match the geo data now on disk. Both download and clear
// change which rules the builder emits.
func restartAfterGeoChange(ctx context.Context, orch tunnelRestarter) error {
	if !orch.Session().Status.Active() {
		return nil
	}
	fmt.Println("Restarting tunnel to apply the routing change...")
	return orch.Restart(ctx)
}

var geoUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Download the latest geo databases",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Downloading geo databases...")
		if err := appInstance.Geo.Download(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Done.")
		return restartAfterGeoChange(cmd.Context(), appInstance.Orchestrator)
	},
}

var geoClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the geo databases",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := appInstance.Geo.Clear(); err != nil {
			return err
		}
		fmt.Println("Geo databases removed; routing falls back to the baseline rules.")
		return restartAfterGeoChange(cmd.Context(), appInstance.Orchestrator)
	},
}

var geoStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the geo databases are present",
	Run: func(cmd *cobra.Command, args []string) {
		if appInstance.Geo.AssetsPresent() {
			fmt.Printf("Geo databases present in %s\n", appInstance.Geo.AssetsDir())
		} else {
			fmt.Println("Geo databases missing; run 'tunveil geo update'.")
		}
	},
}

var geoWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the geo databases fresh",
	Long: `Run in the foreground, downloading fresh geo databases on a weekly
schedule. When a refresh lands while the tunnel is up, the tunnel is
restarted so the new data takes effect.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sched, err := geo.NewScheduler(appInstance.Geo, func(ctx context.Context) {
			appInstance.Orchestrator.Adopt(ctx)
			if err := restartAfterGeoChange(ctx, appInstance.Orchestrator); err != nil {
				appInstance.Log.Warn("restart after geo refresh failed", zap.Error(err))
			}
		}, appInstance.Log)
		if err != nil {
			return err
		}

		if err := sched.Start(cmd.Context()); err != nil {
			return err
		}
		defer sched.Stop()

		fmt.Println("Watching geo databases; press Ctrl-C to stop.")
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		return nil
	},
}

func init() {
	geoCmd.AddCommand(geoUpdateCmd)
	geoCmd.AddCommand(geoWatchCmd)
	geoCmd.AddCommand(geoClearCmd)
	geoCmd.AddCommand(geoStatusCmd)
	rootCmd.AddCommand(geoCmd)
}
