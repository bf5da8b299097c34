package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tunveil/internal/core/types"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage the stored share link",
}

var linkSetCmd = &cobra.Command{
	Use:   "set <share-link>",
	Short: "Validate and store a share link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		link := strings.TrimSpace(args[0])

		// Run the link through the converter up front so a bad link fails
		// here instead of at connect time.
		result, err := appInstance.Registry.Convert(link)
		if err != nil {
			return err
		}
		if !result.Success || result.Data == nil || len(result.Data.Outbounds) == 0 {
			return fmt.Errorf("share link produced no usable outbound")
		}

		if err := appInstance.Store.SetSetting(cmd.Context(), types.PrefConfigLink, link); err != nil {
			return err
		}
		appInstance.Orchestrator.Reset()

		fmt.Printf("Link stored (%s)\n", result.Data.Outbounds[0].Protocol)
		return nil
	},
}

var linkShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored share link, redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		link, err := appInstance.Store.GetSetting(cmd.Context(), types.PrefConfigLink)
		if err != nil || link == "" {
			fmt.Println("No link stored.")
			return nil
		}
		fmt.Println(redactLink(link))
		return nil
	},
}

// redactLink hides the credential part of a share link.
func redactLink(link string) string {
	scheme, rest, found := strings.Cut(link, "://")
	if !found {
		return "<unparseable>"
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://****@" + rest[at+1:]
	}
	if len(rest) > 12 {
		rest = rest[:12] + "..."
	}
	return scheme + "://" + rest
}

func init() {
	linkCmd.AddCommand(linkSetCmd)
	linkCmd.AddCommand(linkShowCmd)
	rootCmd.AddCommand(linkCmd)
}
