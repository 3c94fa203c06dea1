package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brightcrawl/rqueue/internal/metrics"
	"github.com/brightcrawl/rqueue/internal/requestqueue"
	"github.com/brightcrawl/rqueue/internal/storageopen"
)

func newReclaimCmd() *cobra.Command {
	var id, uniqueKey string
	var forefront bool

	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Return a dispatched request to the queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			coord, err := storageopen.Open(cmd.Context(), appInstance.GetRegistry(), queueOptions(cmd), appInstance.GetConfig(), appInstance.GetClock(), appInstance.GetLogger())
			if err != nil {
				return fmt.Errorf("open queue: %w", err)
			}

			result, err := coord.Reclaim(cmd.Context(), requestqueue.Request{ID: id, UniqueKey: uniqueKey}, forefront)
			if err != nil {
				metrics.IncOperation(coord.ID(), "reclaim", "error")
				return fmt.Errorf("reclaim: %w", err)
			}
			metrics.IncOperation(coord.ID(), "reclaim", "ok")
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
	cmd.Flags().BoolVar(&forefront, "forefront", false, "reinsert at the head of the queue")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("unique-key")

	return cmd
}
