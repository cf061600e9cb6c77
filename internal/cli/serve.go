package cli

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/logging"
	"github.com/nhle/accomplishment-tracker/internal/server"
)

func newServeCmd(a *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web dashboard, auth callback and revalidation API",
		Args:  cobra.NoArgs,
		Example: strings.TrimSpace(`
  # Serve on the configured address
  accomplish serve

  # Override the address
  accomplish serve --addr :8080
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(logging.ToStderr)
			if err != nil {
				return err
			}
			defer e.Close()

			cfg := e.cfg.Server
			if strings.TrimSpace(addr) != "" {
				cfg.Addr = addr
			}
			srv, err := server.New(server.Config{
				Addr:          cfg.Addr,
				CacheTTL:      time.Duration(cfg.CacheTTLSec) * time.Second,
				SecureCookies: strings.HasPrefix(cfg.PublicURL, "https://"),
				PageSize:      e.cfg.Display.PageSize,
				PublicURL:     cfg.PublicURL,
			}, e.factory,
				server.WithLogger(e.log),
				server.WithTracker(e.tracker),
			)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e.log.Info("serving", zap.String("addr", srv.Addr()))
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr from config)")
	return cmd
}
