package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brightcrawl/rqueue/internal/metrics"
	"github.com/brightcrawl/rqueue/internal/requestqueue"
	"github.com/brightcrawl/rqueue/internal/storageopen"
)

func newMarkHandledCmd() *cobra.Command {
	var id, uniqueKey string

	cmd := &cobra.Command{
		Use:   "mark-handled",
		Short: "Mark a dispatched request as handled",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			coord, err := storageopen.Open(cmd.Context(), appInstance.GetRegistry(), queueOptions(cmd), appInstance.GetConfig(), appInstance.GetClock(), appInstance.GetLogger())
			if err != nil {
				return fmt.Errorf("open queue: %w", err)
			}

			result, err := coord.MarkHandled(cmd.Context(), requestqueue.Request{ID: id, UniqueKey: uniqueKey})
			if err != nil {
				metrics.IncOperation(coord.ID(), "mark-handled", "error")
				return fmt.Errorf("mark handled: %w", err)
			}
			metrics.IncOperation(coord.ID(), "mark-handled", "ok")
			if result == nil {
				fmt.Println("(not in progress)")
				return nil
			}
			fmt.Println(result.RequestID)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "request id (required)")
	cmd.Flags().StringVar(&uniqueKey, "unique-key", "", "request's unique key (required)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("unique-key")

	return cmd
}
