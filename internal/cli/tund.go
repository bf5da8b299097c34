package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"tunveil/internal/core/tun"
)

// tundCmd is the hidden daemon spawned by "tunveil connect". It owns the
// TUN device and the SOCKS translator for the lifetime of the connection.
// Users should never invoke this directly.
var tundCmd = &cobra.Command{
	Use:    "tund",
	Short:  "Internal TUN daemon (not for direct use)",
	Hidden: true,

	// Skip the root PersistentPreRunE: the daemon only needs the tun
	// package, not the database or the application graph.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },

	RunE: func(cmd *cobra.Command, args []string) error {
		socksPort, _ := cmd.Flags().GetInt("socks-port")
		mtu, _ := cmd.Flags().GetInt("mtu")
		bypass, _ := cmd.Flags().GetString("bypass")
		dns, _ := cmd.Flags().GetString("dns")

		return tun.RunDaemon(tun.Options{
			SocksPort:   socksPort,
			MTU:         mtu,
			RemoteAddrs: splitCSV(bypass),
			DNSServers:  splitCSV(dns),
		})
	},
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func init() {
	tundCmd.Flags().Int("socks-port", 1080, "SOCKS5 proxy port")
	tundCmd.Flags().Int("mtu", tun.DefaultMTU, "TUN device MTU")
	tundCmd.Flags().String("bypass", "", "comma-separated addresses to route around the TUN")
	tundCmd.Flags().String("dns", "", "comma-separated DNS servers to set while up")

	rootCmd.AddCommand(tundCmd)
}
