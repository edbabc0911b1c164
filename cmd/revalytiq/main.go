package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/revalytiq-client/app"
	"github.com/jrsteele09/revalytiq-client/internal/config"
	clienterrors "github.com/jrsteele09/revalytiq-client/internal/errors"
	"github.com/jrsteele09/revalytiq-client/internal/logging"
	"github.com/jrsteele09/revalytiq-client/internal/telemetry"
	"github.com/rs/zerolog/log"
)

const usage = `usage: revalytiq <command> [flags]

commands:
  login            sign in and keep the session in the OS keychain
  signup           create an account
  forgot-password  request a password reset token
  reset-password   set a new password with a reset token
  profile          show the signed-in user
  update-profile   change username or email
  logout           sign out
  dashboard        show KPIs, daily revenue and recent orders
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) (status int) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			status = 2
		}
	}()

	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(out, usage)
		return 0
	}

	cfg := config.New()
	logger := logging.Setup(cfg.GetLogLevel(), cfg.GetEnv())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, cfg.GetAppName(), cfg.GetOtelEndpoint(), cfg.GetOtelInsecure())
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Err(err).Msg("telemetry shutdown")
		}
	}()

	a, err := app.New(cfg, app.WithLogger(logger))
	if err != nil {
		log.Err(err).Msg("failed to start")
		return 1
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(out, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	cli := &cli{app: a, out: out, in: os.Stdin}
	if err := cmd(ctx, cli, args[1:]); err != nil {
		if errors.Is(err, clienterrors.ErrNotAuthenticated) {
			fmt.Fprintln(out, "not logged in, run: revalytiq login")
			return 1
		}
		fmt.Fprintln(out, err)
		return 1
	}
	return 0
}

func displayAppname(out io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(out, myFigure.String())
}
