package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tunveil/internal/core/types"
	"tunveil/internal/probe"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the tunnel end to end",
	Long: `Verify the tunnel end to end: checks that the local SOCKS inbound
accepts connections and that a request through it reaches the internet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		v, err := appInstance.Store.GetSetting(ctx, types.PrefSocksPort)
		if err != nil {
			return fmt.Errorf("no SOCKS port recorded; is the tunnel configured?")
		}
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("stored SOCKS port %q is not a number", v)
		}

		result := probe.New(port).Run(ctx)
		if result.Err != nil {
			if result.InboundOK {
				fmt.Println("SOCKS inbound: ok")
			}
			return result.Err
		}

		fmt.Println("SOCKS inbound: ok")
		fmt.Printf("Upstream:      ok (%d ms)\n", result.RTT.Milliseconds())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
