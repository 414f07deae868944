// Command drivegate serves a remote drive over HTTP.
//
//	drivegate serve              # start the HTTP server
//	drivegate route:list         # list registered routes
//	drivegate healthcheck        # probe a running server (container HEALTHCHECK)
//	drivegate account:provision  # create a local-driver account directory
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "drivegate",
	Short:         "drivegate: HTTP gateway for remote drives",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Server
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)
	rootCmd.AddCommand(healthcheckCmd)

	// Accounts
	rootCmd.AddCommand(provisionCmd)
}
