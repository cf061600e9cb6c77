package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/analytics"
	"github.com/nhle/accomplishment-tracker/internal/export"
	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/logging"
	"github.com/nhle/accomplishment-tracker/internal/session"
)

func newExportCmd(a *App) *cobra.Command {
	var out, mailTo, mailFrom string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every accomplishment as CSV",
		Args:  cobra.NoArgs,
		Example: strings.TrimSpace(`
  # Write accomplishments-YYYY-MM-DD.csv in the current directory
  accomplish export

  # Write to stdout
  accomplish export --out -

  # Write an email message with the CSV attached
  accomplish export --mail-to boss@example.com --out review.eml
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(logging.ToStderr)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			viewer, err := session.CurrentViewer(ctx, e.gw)
			if err != nil {
				if errors.Is(err, gateway.ErrUnauthenticated) {
					return errNotSignedIn
				}
				return fmt.Errorf("resolving session: %w", err)
			}
			records, err := e.gw.ListByOwner(ctx, viewer.ID)
			if err != nil {
				return fmt.Errorf("listing accomplishments: %w", err)
			}

			now := time.Now()
			path := strings.TrimSpace(out)
			if path == "" {
				path = export.Filename(now)
				if mailTo != "" {
					path = strings.TrimSuffix(path, ".csv") + ".eml"
				}
			}

			write := func(w io.Writer) error {
				if mailTo == "" {
					return export.WriteCSV(w, records)
				}
				from := mailFrom
				if from == "" {
					from = viewer.Email
				}
				return export.WriteMessage(w, export.Message{From: from, To: mailTo, Now: now}, records)
			}

			if path == "-" {
				if err := write(cmd.OutOrStdout()); err != nil {
					return fmt.Errorf("export: %w", err)
				}
			} else {
				if err := writeFile(path, write); err != nil {
					return fmt.Errorf("export: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d accomplishments to %s\n", len(records), path)
			}

			e.tracker.Track(analytics.ActionExport, "")
			e.log.Debug("exported", zap.Int("count", len(records)), zap.String("path", path))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, or - for stdout (default: dated file name)")
	cmd.Flags().StringVar(&mailTo, "mail-to", "", "Wrap the CSV in an email message addressed to this recipient")
	cmd.Flags().StringVar(&mailFrom, "mail-from", "", "Sender address for --mail-to (default: your email)")
	return cmd
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
