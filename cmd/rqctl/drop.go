package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brightcrawl/rqueue/internal/storageopen"
)

func newDropCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Delete a queue's remote state and forget the cached coordinator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			opts := queueOptions(cmd)
			coord, err := storageopen.Open(cmd.Context(), appInstance.GetRegistry(), opts, appInstance.GetConfig(), appInstance.GetClock(), appInstance.GetLogger())
			if err != nil {
				return fmt.Errorf("open queue: %w", err)
			}

			backend := "local"
			if appInstance.GetConfig().ForceCloud || appInstance.GetConfig().RemoteBaseURL != "" {
				backend = "remote"
			}

			if err := storageopen.Drop(cmd.Context(), appInstance.GetRegistry(), backend, coord); err != nil {
				return fmt.Errorf("drop queue: %w", err)
			}
			fmt.Println("dropped")
			return nil
		},
	}
	return cmd
}
