package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brightcrawl/rqueue/internal/storageopen"
)

func newPeekCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "peek",
		Short: "List request ids buffered in the head window without dispatching them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			coord, err := storageopen.Open(cmd.Context(), appInstance.GetRegistry(), queueOptions(cmd), appInstance.GetConfig(), appInstance.GetClock(), appInstance.GetLogger())
			if err != nil {
				return fmt.Errorf("open queue: %w", err)
			}

			ids, err := coord.Peek(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("peek: %w", err)
			}
			if len(ids) == 0 {
				fmt.Println("(empty)")
				return nil
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of ids to print (0 means all buffered)")
	return cmd
}
