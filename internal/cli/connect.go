package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tunveil/internal/app"
	"tunveil/internal/core/types"
	"tunveil/internal/core/xray"
	"tunveil/pkg/errors"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Bring the tunnel up",
	Long: `Bring the tunnel up using the stored share link and routing mode.

Needs root: the TUN device and route changes require privileges, so run
with sudo. The configuration link must be set first (tunveil link set).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			if err := appInstance.Store.SetSetting(ctx, types.PrefSocksPort, strconv.Itoa(port)); err != nil {
				return err
			}
		}
		if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
			m := types.VPNMode(mode)
			if !m.Valid() {
				return fmt.Errorf("unknown mode %q (use Global or NonGlobal)", mode)
			}
			if err := appInstance.Store.SetSetting(ctx, types.PrefVPNMode, mode); err != nil {
				return err
			}
		}

		if err := appInstance.Orchestrator.Start(ctx); err != nil {
			var conflict *errors.ConflictError
			if errors.As(err, &conflict) {
				return fmt.Errorf("another tunnel is active (profile %q, status %s); disconnect it first",
					conflict.Profile, conflict.Status)
			}
			return err
		}

		fmt.Println("Connected.")
		return nil
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Tear the tunnel down",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := appInstance.Orchestrator.Stop(cmd.Context()); err != nil {
			if errors.Is(err, errors.ErrNotConnected) {
				fmt.Println("Not connected.")
				return nil
			}
			return err
		}
		fmt.Println("Disconnected.")
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the tunnel with current preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := appInstance.Orchestrator.Restart(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Restarted.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tunnel status and traffic counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sess, err := appInstance.Store.GetSession(ctx, app.DefaultProfile)
		if err != nil {
			return err
		}
		if sess == nil || !types.Status(sess.Status).Active() {
			fmt.Println("Status: Disconnected")
			return nil
		}

		fmt.Printf("Status:  %s\n", sess.Status)
		fmt.Printf("Mode:    %s\n", sess.VPNMode)
		fmt.Printf("SOCKS:   127.0.0.1:%d\n", sess.SocksPort)
		if sess.ConnectedAt != nil {
			fmt.Printf("Uptime:  %s\n", time.Since(*sess.ConnectedAt).Round(time.Second))
		}

		if sess.MetricsPort > 0 {
			printTraffic(ctx, sess.MetricsPort)
		}
		return nil
	},
}

func printTraffic(ctx context.Context, metricsPort int) {
	client := xray.NewMetricsClient(metricsPort)
	stats, err := client.Fetch(ctx)
	if err != nil {
		fmt.Printf("Traffic: unavailable (%v)\n", err)
		return
	}
	fmt.Printf("Up:      %s\n", formatBytes(stats.Uplink))
	fmt.Printf("Down:    %s\n", formatBytes(stats.Downlink))
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	connectCmd.Flags().IntP("port", "p", 0, "SOCKS5 port (overrides stored preference)")
	connectCmd.Flags().StringP("mode", "m", "", "routing mode: Global or NonGlobal")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(statusCmd)
}
