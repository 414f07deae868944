package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/drivegate/config"
	"github.com/shashiranjanraj/drivegate/pkg/drive"
)

var provisionRoot string

// drivegate account:provision: create the directory backing a local-driver
// credential. The credential is read from stdin so it stays out of shell
// history.
var provisionCmd = &cobra.Command{
	Use:   "account:provision",
	Short: "Create a local-driver account for the credential read from stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		root := provisionRoot
		if root == "" {
			root = config.Get("DRIVE_LOCAL_ROOT", "storage/accounts")
		}

		credential, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && credential == "" {
			return fmt.Errorf("read credential: %w", err)
		}
		credential = strings.TrimSpace(credential)
		if credential == "" {
			return errors.New("credential is empty")
		}

		dir, err := drive.NewLocal(drive.LocalOptions{Root: root}).Provision(credential)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "provisioned %s (key prefix %s)\n", dir, drive.KeyPrefix(credential))
		return nil
	},
}

func init() {
	provisionCmd.Flags().StringVar(&provisionRoot, "root", "", "account root (default $DRIVE_LOCAL_ROOT)")
}
