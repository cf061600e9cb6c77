package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/accomplishment-tracker/internal/logging"
	"github.com/nhle/accomplishment-tracker/internal/model"
)

type passwordSignIn interface {
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
}

type magicLinkSender interface {
	SendMagicLink(ctx context.Context, email, redirectTo string) error
}

// callbackURL is where an emailed link lands: the web dashboard's auth
// callback.
func callbackURL(cfg model.ServerConfig) string {
	base := strings.TrimRight(cfg.PublicURL, "/")
	if base == "" {
		base = "http://" + cfg.Addr
	}
	return base + "/auth/callback"
}

func newLoginCmd(a *App) *cobra.Command {
	var code, email, password string
	var magicLink bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session in the system keyring",
		Args:  cobra.NoArgs,
		Example: strings.TrimSpace(`
  # Email and password
  accomplish login --email me@example.com --password ...

  # Email a sign-in link, then redeem the code it carries
  accomplish login --email me@example.com --magic-link
  accomplish login --code 3f2c...
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			code = strings.TrimSpace(code)
			email = strings.TrimSpace(email)
			if code == "" && email == "" {
				return errors.New("login: pass --code or --email")
			}
			if magicLink && email == "" {
				return errors.New("login: --magic-link needs --email")
			}

			e, err := a.open(logging.ToStderr)
			if err != nil {
				return err
			}
			defer e.Close()

			if magicLink {
				sender, ok := e.gw.(magicLinkSender)
				if !ok {
					return fmt.Errorf("login: the %s backend does not support sign-in links", e.cfg.Backend.Driver)
				}
				if err := sender.SendMagicLink(cmd.Context(), email, callbackURL(e.cfg.Server)); err != nil {
					return fmt.Errorf("login: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"Sign-in link sent to %s. Open it and run `accomplish login --code <code>` with the code from its address.\n", email)
				return nil
			}

			var sess *model.Session
			if code != "" {
				sess, err = e.gw.ExchangeAuthCode(cmd.Context(), code)
			} else {
				signer, ok := e.gw.(passwordSignIn)
				if !ok {
					return fmt.Errorf("login: the %s backend does not support passwords", e.cfg.Backend.Driver)
				}
				sess, err = signer.SignInWithPassword(cmd.Context(), email, password)
			}
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", viewerLabel(sess.Viewer))
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "One-time auth code")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().BoolVar(&magicLink, "magic-link", false, "Email a one-time sign-in link instead of using a password")
	cmd.MarkFlagsMutuallyExclusive("code", "email")
	cmd.MarkFlagsMutuallyExclusive("magic-link", "password")
	return cmd
}

func newLogoutCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(logging.ToStderr)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.gw.SignOut(cmd.Context()); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}
