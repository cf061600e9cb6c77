package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/app"
	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/logging"
	"github.com/nhle/accomplishment-tracker/internal/model"
	"github.com/nhle/accomplishment-tracker/internal/session"
	"github.com/nhle/accomplishment-tracker/internal/viewmodel"
)

func newTUICmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive accomplishments list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, a)
		},
	}
}

func runTUI(cmd *cobra.Command, a *App) error {
	e, err := a.open(logging.ToFile)
	if err != nil {
		return err
	}
	defer e.Close()

	viewer, err := session.CurrentViewer(cmd.Context(), e.gw)
	if err != nil {
		if errors.Is(err, gateway.ErrUnauthenticated) {
			return errNotSignedIn
		}
		return fmt.Errorf("resolving session: %w", err)
	}

	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	root := app.New(e.gw, viewer, tuiOptions(e, dir))

	final, err := tea.NewProgram(root, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	if err != nil {
		return fmt.Errorf("running tui: %w", err)
	}
	if m, ok := final.(app.Model); ok {
		if r, redirected := m.Redirected(); redirected {
			e.log.Info("tui ended by redirect", zap.String("path", r.Path), zap.Error(r.Err))
			return errNotSignedIn
		}
	}
	return nil
}

func tuiOptions(e *env, exportDir string) app.Options {
	d := e.cfg.Display
	return app.Options{
		ViewModel: viewmodel.Options{
			PageSize:      d.PageSize,
			ConfirmWindow: millis(d.DeleteConfirmMS),
			Tracker:       e.tracker,
			Logger:        e.log,
		},
		SearchDebounce: millis(d.SearchDebounceMS),
		MarkdownStyle:  d.Theme,
		ExportDir:      exportDir,
		Tracker:        e.tracker,
		Logger:         e.log,
	}
}

// millis converts a config value in milliseconds. Non-positive values map
// to zero so callers fall back to their defaults.
func millis(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// viewerLabel is how a viewer is named in command output.
func viewerLabel(v model.Viewer) string {
	if v.Email != "" {
		return v.Email
	}
	return v.ID
}
