package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brightcrawl/rqueue/internal/metrics"
	"github.com/brightcrawl/rqueue/internal/storageopen"
)

func newFetchNextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch-next",
		Short: "Pop the next eligible request from the head window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			coord, err := storageopen.Open(cmd.Context(), appInstance.GetRegistry(), queueOptions(cmd), appInstance.GetConfig(), appInstance.GetClock(), appInstance.GetLogger())
			if err != nil {
				return fmt.Errorf("open queue: %w", err)
			}

			start := time.Now()
			req, err := coord.FetchNext(cmd.Context())
			metrics.ObserveFetchNext(coord.ID(), time.Since(start).Seconds())
			if err != nil {
				metrics.IncOperation(coord.ID(), "fetch-next", "error")
				return fmt.Errorf("fetch next: %w", err)
			}
			metrics.IncOperation(coord.ID(), "fetch-next", "ok")
			if req == nil {
				fmt.Println("(empty)")
				return nil
			}
			fmt.Printf("%s\t%s\t%s\n", req.ID, req.UniqueKey, req.URL)
			return nil
		},
	}
	return cmd
}
