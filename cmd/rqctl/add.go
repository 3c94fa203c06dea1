package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brightcrawl/rqueue/internal/metrics"
	"github.com/brightcrawl/rqueue/internal/requestqueue"
	"github.com/brightcrawl/rqueue/internal/storageopen"
)

func newAddCmd() *cobra.Command {
	var url, uniqueKey string
	var forefront bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a URL to the request queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			coord, err := storageopen.Open(cmd.Context(), appInstance.GetRegistry(), queueOptions(cmd), appInstance.GetConfig(), appInstance.GetClock(), appInstance.GetLogger())
			if err != nil {
				return fmt.Errorf("open queue: %w", err)
			}

			result, err := coord.Add(cmd.Context(), requestqueue.Request{URL: url, UniqueKey: uniqueKey}, forefront)
			if err != nil {
				metrics.IncOperation(coord.ID(), "add", "error")
				return fmt.Errorf("add request: %w", err)
			}
			metrics.IncOperation(coord.ID(), "add", "ok")

			appInstance.GetLogger().Info("added request",
				zap.String("requestId", result.RequestID),
				zap.String("uniqueKey", result.UniqueKey),
				zap.Bool("wasAlreadyPresent", result.WasAlreadyPresent),
			)
			fmt.Println(result.RequestID)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "URL to enqueue (required)")
	cmd.Flags().StringVar(&uniqueKey, "unique-key", "", "explicit dedup key (defaults to the normalized URL)")
	cmd.Flags().BoolVar(&forefront, "forefront", false, "insert at the head of the queue")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}
