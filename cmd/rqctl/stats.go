package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brightcrawl/rqueue/internal/metrics"
	"github.com/brightcrawl/rqueue/internal/storageopen"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print a coordinator's advisory counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			coord, err := storageopen.Open(cmd.Context(), appInstance.GetRegistry(), queueOptions(cmd), appInstance.GetConfig(), appInstance.GetClock(), appInstance.GetLogger())
			if err != nil {
				return fmt.Errorf("open queue: %w", err)
			}

			finished, err := coord.IsFinished(cmd.Context())
			if err != nil {
				return fmt.Errorf("check finished: %w", err)
			}

			s := coord.CurrentStats()
			metrics.ObserveStats(coord.ID(), s.HeadWindowSize, s.InProgressCount, s.AssumedTotalCount, s.AssumedHandledCount)

			fmt.Printf("queueId:            %s\n", coord.ID())
			fmt.Printf("headWindowSize:     %d\n", s.HeadWindowSize)
			fmt.Printf("inProgressCount:    %d\n", s.InProgressCount)
			fmt.Printf("recentlyHandled:    %d\n", s.RecentlyHandledSize)
			fmt.Printf("requestCacheSize:   %d\n", s.RequestCacheSize)
			fmt.Printf("assumedTotalCount:  %d\n", s.AssumedTotalCount)
			fmt.Printf("assumedHandledCount:%d\n", s.AssumedHandledCount)
			fmt.Printf("lastActivity:       %s\n", s.LastActivity.Format("2006-01-02T15:04:05Z07:00"))
			fmt.Printf("finished:           %t\n", finished)
			return nil
		},
	}
	return cmd
}
