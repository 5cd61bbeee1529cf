package cli

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/flocksync/internal/client/models"
)

// NewAddCommand creates the add command and its per-kind subcommands.
// Records are written to the local store only; "sync" uploads them.
func NewAddCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a record in the local store",
	}

	cmd.AddCommand(
		newAddNoteCommand(opts),
		newAddPrayerCommand(opts),
		newAddVerseCommand(opts),
	)

	return cmd
}

func newAddNoteCommand(opts *RootOptions) *cobra.Command {
	var title, body, visibility string
	var tags []string

	cmd := &cobra.Command{
		Use:   "note",
		Short: "Add a personal note",
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

			reader := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			if title == "" {
				if title, err = GetSimpleText(reader, "Title", out); err != nil {
					return err
				}
			}
			if body == "" {
				if body, err = GetMultiline(reader, "Note text", out); err != nil {
					return err
				}
			}

			vis, err := parseVisibility(visibility)
			if err != nil {
				return err
			}

			rec, err := models.NewRecord(sess.UserID, sess.Name, sess.ChurchID, vis,
				models.Note{Title: title, Body: body, Tags: tags})
			if err != nil {
				return err
			}
			if err := env.records.Put(ctx, rec); err != nil {
				return err
			}

			fmt.Fprintf(out, "Created note %s\n", rec.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "note title (prompted when omitted)")
	cmd.Flags().StringVar(&body, "body", "", "note text (prompted when omitted)")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "comma-separated tags")
	cmd.Flags().StringVar(&visibility, "visibility", string(models.VisibilityPrivate),
		"private, church or public")

	return cmd
}

func newAddPrayerCommand(opts *RootOptions) *cobra.Command {
	var text, visibility string
	var anonymous bool

	cmd := &cobra.Command{
		Use:   "prayer",
		Short: "Add a prayer request",
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

			reader := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			if text == "" {
				if text, err = GetMultiline(reader, "Prayer request", out); err != nil {
					return err
				}
			}

			vis, err := parseVisibility(visibility)
			if err != nil {
				return err
			}

			payload := models.PrayerRequest{Text: text, Anonymous: anonymous}
			if !anonymous {
				payload.DisplayName = sess.Name
			}

			rec, err := models.NewRecord(sess.UserID, sess.Name, sess.ChurchID, vis, payload)
			if err != nil {
				return err
			}
			if err := env.records.Put(ctx, rec); err != nil {
				return err
			}

			fmt.Fprintf(out, "Created prayer request %s\n", rec.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&text, "text", "t", "", "request text (prompted when omitted)")
	cmd.Flags().BoolVar(&anonymous, "anonymous", false, "hide the author name in rendered feeds")
	// Prayer requests exist to be shared, so they default to the congregation.
	cmd.Flags().StringVar(&visibility, "visibility", string(models.VisibilityChurch),
		"private, church or public")

	return cmd
}

func newAddVerseCommand(opts *RootOptions) *cobra.Command {
	var book, text, visibility string
	var chapter, verse int

	cmd := &cobra.Command{
		Use:   "verse",
		Short: "Add a verse annotation",
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

			if book == "" || chapter <= 0 || verse <= 0 {
				return fmt.Errorf("a verse annotation needs --book, --chapter and --verse")
			}

			reader := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			if text == "" {
				if text, err = GetMultiline(reader, "Annotation", out); err != nil {
					return err
				}
			}

			vis, err := parseVisibility(visibility)
			if err != nil {
				return err
			}

			rec, err := models.NewRecord(sess.UserID, sess.Name, sess.ChurchID, vis,
				models.VerseAnnotation{Book: book, Chapter: chapter, Verse: verse, Text: text})
			if err != nil {
				return err
			}
			if err := env.records.Put(ctx, rec); err != nil {
				return err
			}

			fmt.Fprintf(out, "Created verse annotation %s\n", rec.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&book, "book", "", "scripture book (e.g. John)")
	cmd.Flags().IntVar(&chapter, "chapter", 0, "chapter number")
	cmd.Flags().IntVar(&verse, "verse", 0, "verse number")
	cmd.Flags().StringVarP(&text, "text", "t", "", "annotation text (prompted when omitted)")
	cmd.Flags().StringVar(&visibility, "visibility", string(models.VisibilityPrivate),
		"private, church or public")

	return cmd
}

func parseVisibility(s string) (models.Visibility, error) {
	switch models.Visibility(s) {
	case models.VisibilityPrivate, models.VisibilityChurch, models.VisibilityPublic:
		return models.Visibility(s), nil
	default:
		return "", fmt.Errorf("unknown visibility %q: use private, church or public", s)
	}
}
