package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/flocksync/internal/client/models"
	"github.com/dmitrijs2005/flocksync/internal/client/reminders"
)

// NewRemindCommand creates the remind command and its subcommands.
func NewRemindCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Book or clear reminders for registered events",
		Long: `Book a notification ahead of an event start. The booking is persisted
in the local store; the running daemon re-arms it after a restart and
delivers it when the time comes.`,
	}

	cmd.AddCommand(
		newRemindSetCommand(opts),
		newRemindClearCommand(opts),
	)

	return cmd
}

func newRemindSetCommand(opts *RootOptions) *cobra.Command {
	var eventID, title, starts string
	var lead int

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Book a reminder ahead of the event start",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := openEnv(ctx, opts)
			if err != nil {
				return err
			}
			defer env.Close()

			if title == "" || starts == "" {
				return fmt.Errorf("a reminder needs --title and --starts")
			}
			startsAt, err := time.Parse(time.RFC3339, starts)
			if err != nil {
				return fmt.Errorf("parse --starts: %w", err)
			}

			sched := reminders.NewScheduler(env.store, reminders.NewTimerNotifier(nil), env.log)
			event := models.Event{ID: eventID, Title: title, StartsAt: startsAt}
			booked, err := sched.RescheduleReminder(ctx, event, lead)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if booked == nil {
				fmt.Fprintln(out, "Reminder time already passed; nothing was booked.")
				return nil
			}
			fmt.Fprintf(out, "Reminder booked for %s (%d minutes before start).\n",
				time.UnixMilli(booked.FireAt).Format(time.RFC3339), booked.LeadMinutes)
			return nil
		},
	}

	cmd.Flags().StringVar(&eventID, "event-id", "", "event identifier")
	_ = cmd.MarkFlagRequired("event-id")
	cmd.Flags().StringVar(&title, "title", "", "event title")
	cmd.Flags().StringVar(&starts, "starts", "", "event start time, RFC 3339")
	cmd.Flags().IntVar(&lead, "lead", 30, "minutes before start to fire")

	return cmd
}

func newRemindClearCommand(opts *RootOptions) *cobra.Command {
	var eventID string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Cancel the event's reminder",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := openEnv(ctx, opts)
			if err != nil {
				return err
			}
			defer env.Close()

			sched := reminders.NewScheduler(env.store, reminders.NewTimerNotifier(nil), env.log)
			if err := sched.CancelReminder(ctx, eventID); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Reminder cleared.")
			return nil
		},
	}

	cmd.Flags().StringVar(&eventID, "event-id", "", "event identifier")
	_ = cmd.MarkFlagRequired("event-id")

	return cmd
}
