package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goauth2 "google.golang.org/api/oauth2/v2"

	"github.com/cwoolley/tunnelauth/internal/auth"
	"github.com/cwoolley/tunnelauth/internal/config"
	"github.com/cwoolley/tunnelauth/internal/login"
	"github.com/cwoolley/tunnelauth/internal/portcheck"
	"github.com/cwoolley/tunnelauth/internal/tui"
)

var version = "0.3.0"

// LoginFunc runs one login-ssh invocation. Injected for testability.
type LoginFunc func(ctx context.Context, opts login.Options) (*auth.Result, error)

// Seams for tests.
var (
	loadConfig = config.Load
	isTerminal = func(f *os.File) bool {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
)

func newRootCmd(loginFn LoginFunc, out, errW io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "tunnelauth",
		Short: "Complete browser OAuth logins from headless machines over a forwarded port",
	}

	var (
		port   int
		tenant string
		plain  bool
	)
	loginSSHCmd := &cobra.Command{
		Use:   "login-ssh",
		Short: "Log in using an SSH-forwarded OAuth redirect port",
		Long: `Log in with a browser on your local machine while tunnelauth runs on a
headless remote one. The OAuth redirect listener binds a fixed loopback
port; forward it before logging in, e.g.:

  ssh -L 8400:localhost:8400 user@remote

then run "tunnelauth login-ssh --port 8400" on the remote machine and open
the printed authorization URL in your local browser.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var reporter portcheck.WaitReporter
			if !plain && isTerminal(os.Stderr) {
				// Ctrl+C inside the raw-mode countdown never reaches the
				// signal handler; the display cancels the context itself.
				reporter = tui.NewCountdown(errW, cancel)
			} else {
				reporter = login.NewPlainReporter(errW)
			}

			result, err := loginFn(ctx, login.Options{
				Port:     port,
				Tenant:   tenant,
				Err:      errW,
				Reporter: reporter,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Logged in as %s\n", result.Email)
			return nil
		},
	}
	loginSSHCmd.Flags().IntVarP(&port, "port", "p", 0, "loopback port for the OAuth redirect (1024-65535)")
	loginSSHCmd.Flags().StringVarP(&tenant, "tenant", "t", "", "restrict sign-in to a Workspace domain")
	loginSSHCmd.Flags().BoolVar(&plain, "plain", false, "plain-text countdown instead of the progress display")
	_ = loginSSHCmd.MarkFlagRequired("port")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the tunnelauth version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out, "tunnelauth version %s\n", version)
		},
	}

	root.AddCommand(loginSSHCmd, versionCmd)
	return root
}

// buildLoginFn wires the real config and login pipeline.
func buildLoginFn() LoginFunc {
	return func(ctx context.Context, opts login.Options) (*auth.Result, error) {
		cfg, err := loadConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
			return nil, fmt.Errorf("Google OAuth credentials not configured.\n\n"+
				"Set these environment variables (or put them in a .env file):\n"+
				"  export %s=\"your-client-id\"\n"+
				"  export %s=\"your-client-secret\"",
				config.EnvClientID, config.EnvClientSecret)
		}

		authCfg := auth.Config{
			OAuth: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Scopes:       []string{goauth2.UserinfoEmailScope, goauth2.UserinfoProfileScope},
				Endpoint:     google.Endpoint,
			},
			TokenPath:     cfg.TokenPath,
			HTTPCachePath: cfg.HTTPCachePath,
		}
		return login.Run(ctx, authCfg, opts)
	}
}

func runWithOutput(ctx context.Context, args []string, loginFn LoginFunc, out, errW io.Writer) error {
	cmd := newRootCmd(loginFn, out, errW)
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errW)
	return cmd.ExecuteContext(ctx)
}

func run(ctx context.Context, args []string, loginFn LoginFunc) error {
	return runWithOutput(ctx, args, loginFn, os.Stdout, os.Stderr)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], buildLoginFn()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
