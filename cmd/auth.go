package cmd

import (
	"bimvault/internal/auth"
	"bimvault/internal/bimcloud"
	"bimvault/internal/logger"
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication for the manager and cloud storage",
}

var authGDriveCmd = &cobra.Command{
	Use:   "gdrive",
	Short: "Authenticate with Google Drive",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := auth.AuthorizeGDrive(); err != nil {
			return err
		}

		fmt.Println("Authenticated with Google Drive")
		return nil
	},
}

var authDropboxCmd = &cobra.Command{
	Use:   "dropbox",
	Short: "Authenticate with Dropbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := auth.AuthorizeDropbox(); err != nil {
			return err
		}

		fmt.Println("Authenticated with Dropbox")
		return nil
	},
}

var authBimcloudCmd = &cobra.Command{
	Use:   "bimcloud",
	Short: "Verify the configured manager credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		client, err := bimcloud.New(cmd.Context(), cfg.ManagerURL, cfg.ClientID, cfg.Username, cfg.Password)
		if err != nil {
			return fmt.Errorf("failed to authorize against the manager: %w", err)
		}

		defer func() {
			if err := client.CloseSession(context.WithoutCancel(cmd.Context())); err != nil {
				logger.Log.Debug("failed to close manager session", zap.Error(err))
			}
		}()

		servers, err := client.GetModelServers(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Authenticated against %s (%d model servers)\n", cfg.ManagerURL, len(servers))
		for _, s := range servers {
			fmt.Printf("  %s (%s)\n", s.Name, s.ID)
		}

		return nil
	},
}

func init() {
	authCmd.AddCommand(authGDriveCmd, authDropboxCmd, authBimcloudCmd)
	rootCmd.AddCommand(authCmd)
}
