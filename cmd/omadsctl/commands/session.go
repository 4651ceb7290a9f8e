package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// sessionCmd groups read-only session inspection. Sessions are declared in
// the daemon's config, not created or deleted through the CLI (spec §4.1's
// session lifecycle is driven by the protocol and by config, not by an
// operator), so unlike the teacher's "session add"/"session delete" this
// group only exposes list/show.
func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect live sync sessions",
	}

	cmd.AddCommand(sessionListCmd())
	cmd.AddCommand(sessionShowCmd())

	return cmd
}

func sessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all live sessions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			resp, err := client.ListSessions(context.Background())
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}

			out, err := formatSessions(resp.Sessions, outputFormat)
			if err != nil {
				return fmt.Errorf("format sessions: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}

func sessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show details of a live session",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			resp, err := client.GetSession(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("get session: %w", err)
			}

			out, err := formatSession(resp.Session, outputFormat)
			if err != nil {
				return fmt.Errorf("format session: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}

// changelogCmd inspects the persisted ChangeLog (spec §4.4) for one
// (remote device, local URI) pair.
func changelogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changelog",
		Short: "Inspect the persisted change log",
	}

	cmd.AddCommand(changelogShowCmd())

	return cmd
}

func changelogShowCmd() *cobra.Command {
	var remoteDevice string

	cmd := &cobra.Command{
		Use:   "show <local-uri>",
		Short: "Show anchors and UID mappings for a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			resp, err := client.GetChangeLog(context.Background(), remoteDevice, args[0])
			if err != nil {
				return fmt.Errorf("get change log: %w", err)
			}

			out, err := formatChangeLog(*resp, outputFormat)
			if err != nil {
				return fmt.Errorf("format change log: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}

	cmd.Flags().StringVar(&remoteDevice, "remote-device", "", "remote device identifier (required)")

	return cmd
}

// syncCmd forces a resync of one target on its next pass (spec §3 "forced
// sync").
func syncCmd() *cobra.Command {
	var (
		remoteDevice string
		syncType     string
	)

	cmd := &cobra.Command{
		Use:   "sync <local-uri>",
		Short: "Force a resync of a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			resp, err := client.TriggerSync(context.Background(), remoteDevice, args[0], syncType)
			if err != nil {
				return fmt.Errorf("trigger sync: %w", err)
			}

			if !resp.Accepted {
				fmt.Printf("No live session matched remote device %q and target %q.\n", remoteDevice, args[0])
				return nil
			}

			fmt.Printf("Target %q will %s-sync on its next pass.\n", args[0], syncType)

			return nil
		},
	}

	cmd.Flags().StringVar(&remoteDevice, "remote-device", "", "restrict to one remote device's session")
	cmd.Flags().StringVar(&syncType, "type", "slow", "sync type: fast, slow, or refresh")

	return cmd
}
