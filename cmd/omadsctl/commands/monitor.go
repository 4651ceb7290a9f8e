package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-omads/omads/internal/server"
)

// monitorCmd polls the admin plane for session phase changes until
// interrupted (Ctrl+C). The admin plane only exposes unary RPCs (spec §6
// names no streaming requirement), so unlike the teacher's
// WatchSessionEvents this diffs successive ListSessions snapshots instead
// of consuming a server stream.
func monitorCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Poll session phase changes",
		Long:  "Polls the omadsd admin plane at --interval and prints a line for each session whose phase changed since the previous poll, until interrupted (Ctrl+C).",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			last := map[string]string{}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				resp, err := client.ListSessions(ctx)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return fmt.Errorf("list sessions: %w", err)
				}

				for _, s := range resp.Sessions {
					if prev, ok := last[s.SessionID]; !ok || prev != s.Phase {
						fmt.Println(formatPhaseChange(s, prev, ok))
						last[s.SessionID] = s.Phase
					}
				}

				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Second, "poll interval")

	return cmd
}

func formatPhaseChange(s server.SessionSummary, prev string, hadPrev bool) string {
	if !hadPrev {
		return fmt.Sprintf("[%s] session=%s remote=%s phase=%s (new)",
			time.Now().Format(time.RFC3339), s.SessionID, s.RemoteDevice, s.Phase)
	}

	return fmt.Sprintf("[%s] session=%s remote=%s phase=%s (was %s)",
		time.Now().Format(time.RFC3339), s.SessionID, s.RemoteDevice, s.Phase, prev)
}
