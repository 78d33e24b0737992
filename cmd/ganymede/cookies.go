package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/credentials"
)

var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Inspect credential bundles",
}

var cookiesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a credential bundle file",
	Long: `Validate a credential bundle file without contacting the upstream.

Checks that the file parses (flat object or browser-export record list)
and that the primary session cookie is present. This is an offline check:
expired cookies still pass; only the server's handshake can detect those.

Examples:
  ganymede cookies validate cookies.json`,
	Args: cobra.ExactArgs(1),
	RunE: validateCookies,
}

func init() {
	cookiesCmd.AddCommand(cookiesValidateCmd)
	rootCmd.AddCommand(cookiesCmd)
}

func validateCookies(cmd *cobra.Command, args []string) error {
	path := args[0]

	bundle, err := credentials.Load(path)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("%s: valid credential bundle\n", path)
	fmt.Printf("  cookies: %d\n", len(bundle))
	fmt.Printf("  primary token (%s): present\n", credentials.PrimaryToken)
	if bundle.Refresh() != "" {
		fmt.Printf("  refresh token (%s): present\n", credentials.RefreshToken)
	} else {
		fmt.Printf("  refresh token (%s): absent (rotation will not refresh)\n", credentials.RefreshToken)
	}
	return nil
}
