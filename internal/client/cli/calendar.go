package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/flocksync/internal/client/calendar"
	"github.com/dmitrijs2005/flocksync/internal/client/models"
	"github.com/dmitrijs2005/flocksync/internal/filex"
)

// NewCalendarCommand creates the calendar command and its subcommands.
func NewCalendarCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Mirror registered events into external calendars",
	}

	cmd.AddCommand(
		newCalendarSyncCommand(opts),
		newCalendarRemoveCommand(opts),
		newCalendarExportCommand(opts),
	)

	return cmd
}

// eventFlags gathers the event fields shared by the calendar subcommands.
type eventFlags struct {
	id          string
	title       string
	description string
	location    string
	starts      string
	ends        string
}

func (f *eventFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "event-id", "", "event identifier")
	cmd.Flags().StringVar(&f.title, "title", "", "event title")
	cmd.Flags().StringVar(&f.description, "description", "", "event description")
	cmd.Flags().StringVar(&f.location, "location", "", "event location")
	cmd.Flags().StringVar(&f.starts, "starts", "", "start time, RFC 3339 (e.g. 2026-09-01T18:00:00Z)")
	cmd.Flags().StringVar(&f.ends, "ends", "", "end time, RFC 3339 (defaults to one hour after start)")
	_ = cmd.MarkFlagRequired("event-id")
}

func (f *eventFlags) build() (models.Event, error) {
	if f.title == "" || f.starts == "" {
		return models.Event{}, fmt.Errorf("an event needs --title and --starts")
	}
	startsAt, err := time.Parse(time.RFC3339, f.starts)
	if err != nil {
		return models.Event{}, fmt.Errorf("parse --starts: %w", err)
	}
	endsAt := startsAt.Add(time.Hour)
	if f.ends != "" {
		if endsAt, err = time.Parse(time.RFC3339, f.ends); err != nil {
			return models.Event{}, fmt.Errorf("parse --ends: %w", err)
		}
	}
	return models.Event{
		ID:          f.id,
		Title:       f.title,
		Description: f.description,
		Location:    f.location,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
	}, nil
}

func newCalendarSyncCommand(opts *RootOptions) *cobra.Command {
	var ef eventFlags
	var providerNames []string
	var googleToken, outlookToken string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Create or update the event in the chosen providers",
		Long: `Mirror one event into external calendars. The first sync creates the
provider-side event; running it again updates it in place, never duplicating.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := openEnv(ctx, opts)
			if err != nil {
				return err
			}
			defer env.Close()

			sess, err := env.requireSession()
			if err != nil {
				return err
			}

			event, err := ef.build()
			if err != nil {
				return err
			}
			providers, err := parseProviders(providerNames)
			if err != nil {
				return err
			}

			coord := calendar.NewCoordinator(env.store, sess.UserID,
				calendar.DefaultAPIs(env.store), env.log)
			results := coord.SyncAll(ctx, event, providers, providerCreds(googleToken, outlookToken))

			return printSyncResults(cmd.OutOrStdout(), results)
		},
	}

	ef.register(cmd)
	cmd.Flags().StringSliceVar(&providerNames, "providers", []string{"google", "outlook", "apple"},
		"providers to mirror into (google, outlook, apple)")
	cmd.Flags().StringVar(&googleToken, "google-token", "", "Google Calendar access token")
	cmd.Flags().StringVar(&outlookToken, "outlook-token", "", "Outlook access token")

	return cmd
}

func newCalendarRemoveCommand(opts *RootOptions) *cobra.Command {
	var eventID string
	var providerNames []string
	var googleToken, outlookToken string

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Delete the mirrored event from the chosen providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := openEnv(ctx, opts)
			if err != nil {
				return err
			}
			defer env.Close()

			sess, err := env.requireSession()
			if err != nil {
				return err
			}

			providers, err := parseProviders(providerNames)
			if err != nil {
				return err
			}

			coord := calendar.NewCoordinator(env.store, sess.UserID,
				calendar.DefaultAPIs(env.store), env.log)
			creds := providerCreds(googleToken, outlookToken)

			results := make([]calendar.SyncResult, 0, len(providers))
			for _, p := range providers {
				results = append(results, coord.RemoveOne(ctx, models.Event{ID: eventID}, p, creds[p]))
			}

			return printSyncResults(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().StringVar(&eventID, "event-id", "", "event identifier")
	_ = cmd.MarkFlagRequired("event-id")
	cmd.Flags().StringSliceVar(&providerNames, "providers", []string{"google", "outlook", "apple"},
		"providers to remove from (google, outlook, apple)")
	cmd.Flags().StringVar(&googleToken, "google-token", "", "Google Calendar access token")
	cmd.Flags().StringVar(&outlookToken, "outlook-token", "", "Outlook access token")

	return cmd
}

func newCalendarExportCommand(opts *RootOptions) *cobra.Command {
	var ef eventFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the event as an ICS file for manual import",
		Long: `Write the event as an RFC 5545 ICS file into the blob area. Apple
calendars have no API; the member imports the file by hand. Exporting the
same event again rewrites the file with the same UID, so a calendar app
updates instead of duplicating.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := openEnv(ctx, opts)
			if err != nil {
				return err
			}
			defer env.Close()

			sess, err := env.requireSession()
			if err != nil {
				return err
			}

			event, err := ef.build()
			if err != nil {
				return err
			}

			coord := calendar.NewCoordinator(env.store, sess.UserID,
				calendar.DefaultAPIs(env.store), env.log)
			res := coord.SyncOne(ctx, event, models.ProviderApple, calendar.Credentials{})
			if res.Status == calendar.StatusFailed {
				return res.Err
			}

			path := filepath.Join(env.cfg.BlobDir, filex.SanitizeName(res.ExternalID))
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
			return nil
		},
	}

	ef.register(cmd)

	return cmd
}

func parseProviders(names []string) ([]models.CalendarProvider, error) {
	providers := make([]models.CalendarProvider, 0, len(names))
	for _, name := range names {
		switch p := models.CalendarProvider(name); p {
		case models.ProviderGoogle, models.ProviderOutlook, models.ProviderApple:
			providers = append(providers, p)
		default:
			return nil, fmt.Errorf("unknown provider %q: use google, outlook or apple", name)
		}
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers given")
	}
	return providers, nil
}

func providerCreds(googleToken, outlookToken string) map[models.CalendarProvider]calendar.Credentials {
	return map[models.CalendarProvider]calendar.Credentials{
		models.ProviderGoogle:  {AccessToken: googleToken},
		models.ProviderOutlook: {AccessToken: outlookToken},
		models.ProviderApple:   {},
	}
}

func printSyncResults(out io.Writer, results []calendar.SyncResult) error {
	failed := 0
	for _, res := range results {
		switch res.Status {
		case calendar.StatusOK:
			if res.ExternalID != "" {
				fmt.Fprintf(out, "%-8s ok (%s)\n", res.Provider, res.ExternalID)
			} else {
				fmt.Fprintf(out, "%-8s ok\n", res.Provider)
			}
		case calendar.StatusUnsupported:
			fmt.Fprintf(out, "%-8s unsupported\n", res.Provider)
		default:
			failed++
			fmt.Fprintf(out, "%-8s failed: %v\n", res.Provider, res.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d provider(s) failed", failed)
	}
	return nil
}
