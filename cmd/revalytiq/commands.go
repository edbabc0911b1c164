package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/revalytiq-client/api"
	"github.com/jrsteele09/revalytiq-client/app"
	clienterrors "github.com/jrsteele09/revalytiq-client/internal/errors"
	"github.com/jrsteele09/revalytiq-client/views"
	"golang.org/x/term"
)

type cli struct {
	app   *app.App
	out   io.Writer
	in    *os.File
	lines *bufio.Reader // piped stdin, shared so buffered lines survive between prompts
}

type command func(ctx context.Context, c *cli, args []string) error

var commands = map[string]command{
	"login":           loginCmd,
	"signup":          signupCmd,
	"forgot-password": forgotPasswordCmd,
	"reset-password":  resetPasswordCmd,
	"profile":         profileCmd,
	"update-profile":  updateProfileCmd,
	"logout":          logoutCmd,
	"dashboard":       dashboardCmd,
}

// requireSession runs the startup check and refuses protected commands without a
// session.
func (c *cli) requireSession(ctx context.Context) error {
	if err := c.app.Start(ctx); err != nil {
		return err
	}
	if views.Guard(c.app.Store.Current()).Kind != views.DecisionAllow {
		return clienterrors.ErrNotAuthenticated
	}
	return nil
}

// secret returns value, or prompts for it without echo when stdin is a terminal.
func (c *cli) secret(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	fd := int(c.in.Fd())
	if !term.IsTerminal(fd) {
		if c.lines == nil {
			c.lines = bufio.NewReader(c.in)
		}
		line, err := c.lines.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fmt.Fprint(c.out, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(c.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

func (c *cli) report(o views.Outcome) error {
	if !o.OK() {
		return errors.New(o.Error)
	}
	if o.Notice != "" {
		fmt.Fprintln(c.out, o.Notice)
	}
	return nil
}

func loginCmd(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	displayAppname(c.out, c.app.Config.GetAppName())
	pass, err := c.secret(*password, "Password: ")
	if err != nil {
		return err
	}
	return c.report(c.app.Pages.Login(ctx, views.LoginForm{Username: *username, Password: pass}))
}

func signupCmd(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	email := fs.String("e", "", "email")
	password := fs.String("p", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pass, err := c.secret(*password, "Password: ")
	if err != nil {
		return err
	}
	confirm := pass
	if *password == "" {
		if confirm, err = c.secret("", "Confirm password: "); err != nil {
			return err
		}
	}
	return c.report(c.app.Pages.Signup(ctx, views.SignupForm{
		Username:  *username,
		Email:     *email,
		Password:  pass,
		Password2: confirm,
	}))
}

func forgotPasswordCmd(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("forgot-password", flag.ContinueOnError)
	email := fs.String("e", "", "email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	outcome, err := c.app.Pages.ForgotPassword(ctx, views.ForgotPasswordForm{Email: *email})
	if err != nil {
		return describe(err)
	}
	fmt.Fprintln(c.out, outcome.Notice)
	if outcome.Token != "" {
		fmt.Fprintf(c.out, "reset token: %s\nuid: %s\n", outcome.Token, outcome.UID)
	}
	return nil
}

func resetPasswordCmd(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	email := fs.String("e", "", "email")
	uid := fs.String("uid", "", "uid from forgot-password")
	token := fs.String("t", "", "reset token")
	password := fs.String("p", "", "new password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pass, err := c.secret(*password, "New password: ")
	if err != nil {
		return err
	}
	confirm := pass
	if *password == "" {
		if confirm, err = c.secret("", "Confirm password: "); err != nil {
			return err
		}
	}

	outcome, err := c.app.Pages.ResetPassword(ctx, views.ResetPasswordForm{
		Email:        *email,
		UID:          *uid,
		Token:        *token,
		NewPassword:  pass,
		NewPassword2: confirm,
	})
	if err != nil {
		return describe(err)
	}
	return c.report(outcome)
}

func profileCmd(ctx context.Context, c *cli, _ []string) error {
	if err := c.requireSession(ctx); err != nil {
		return err
	}
	_, form := c.app.Pages.ProfileDraft()
	fmt.Fprintf(c.out, "username: %s\nemail:    %s\n", form.Username, form.Email)
	return nil
}

func updateProfileCmd(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("update-profile", flag.ContinueOnError)
	username := fs.String("u", "", "new username")
	email := fs.String("e", "", "new email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.requireSession(ctx); err != nil {
		return err
	}

	_, form := c.app.Pages.ProfileDraft()
	if *username != "" {
		form.Username = *username
	}
	if *email != "" {
		form.Email = *email
	}
	return c.report(c.app.Pages.SaveProfile(ctx, form))
}

func logoutCmd(ctx context.Context, c *cli, _ []string) error {
	c.app.Pages.Logout(ctx)
	fmt.Fprintln(c.out, "logged out")
	return nil
}

func dashboardCmd(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	start := fs.String("start", "", "KPI window start (YYYY-MM-DD)")
	end := fs.String("end", "", "KPI window end (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	window, err := parseWindow(*start, *end)
	if err != nil {
		return err
	}
	if err := c.requireSession(ctx); err != nil {
		return err
	}

	decision, data := c.app.Pages.Dashboard(ctx, views.DashboardOptions{Range: window})
	if decision.Kind != views.DecisionAllow {
		return clienterrors.ErrNotAuthenticated
	}
	renderDashboard(c.out, c.app.Store.Current().User.Username, data)
	if data.Error != "" {
		return errors.New(data.Error)
	}
	return nil
}

func parseWindow(start, end string) (api.KPIRange, error) {
	var window api.KPIRange
	var err error
	if start != "" {
		if window.Start, err = time.ParseInLocation("2006-01-02", start, time.Local); err != nil {
			return window, fmt.Errorf("invalid -start: %w", err)
		}
	}
	if end != "" {
		if window.End, err = time.ParseInLocation("2006-01-02", end, time.Local); err != nil {
			return window, fmt.Errorf("invalid -end: %w", err)
		}
	}
	return window, nil
}

// describe turns a backend rejection into its messages.
func describe(err error) error {
	if messages := api.JoinValidationErrors(err); messages != "" {
		return errors.New(messages)
	}
	return err
}
