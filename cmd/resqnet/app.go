package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"resqnet-web/pkg/client"
	"resqnet-web/pkg/config"
	"resqnet-web/pkg/guard"
	"resqnet-web/pkg/models"
	"resqnet-web/pkg/obs"
	"resqnet-web/pkg/session"
	"resqnet-web/pkg/store"
)

// 退出码
const (
	exitOK       = 0
	exitError    = 1
	exitUsage    = 2
	exitDenied   = 3
	exitLoggedIn = 4
)

const (
	credentialsFile = "credentials.json"
	credentialKey   = "default"
)

var errUsage = errors.New("usage")

// command is one subcommand. A public command skips the guard; otherwise
// roles is the allow-list and nil admits every logged-in role.
type command struct {
	name    string
	summary string
	public  bool
	roles   []models.Role
	run     func(ctx context.Context, a *app, args []string) error
}

// app is one CLI invocation: the equivalent of a page load.
type app struct {
	cfg     *config.Config
	api     *client.Client
	store   store.Store
	session *session.Manager
	out     io.Writer
	errOut  io.Writer
	asJSON  bool
	log     zerolog.Logger

	// reload is where the session manager asked to navigate, if anywhere.
	reload string
}

func commands() []command {
	anyone := []models.Role(nil)
	return []command{
		{name: "login", summary: "log in: login -email you@example.org [-password ...]", public: true, run: cmdLogin},
		{name: "logout", summary: "forget the stored login", public: true, run: cmdLogout},
		{name: "whoami", summary: "show the current session", public: true, run: cmdWhoami},
		{name: "disasters", summary: "list disasters [-mine]", roles: anyone, run: cmdDisasters},
		{name: "report", summary: "report a disaster -type -severity -description -lat -lon", roles: guard.Roles(models.RoleReporter), run: cmdReport},
		{name: "requests", summary: "list resource requests [-status] [-disaster]", roles: anyone, run: cmdRequests},
		{name: "request", summary: "request resources -disaster -category -quantity", roles: guard.Roles(models.RoleReporter), run: cmdRequest},
		{name: "contribute", summary: "contribute -request -category -quantity [-lat -lon]", roles: guard.Roles(models.RoleResponder), run: cmdContribute},
		{name: "contributions", summary: "contributions received (reporter) or made (responder)", roles: guard.Roles(models.RoleReporter, models.RoleResponder), run: cmdContributions},
		{name: "notifications", summary: "list notifications [-unread] [-watch]", roles: anyone, run: cmdNotifications},
		{name: "read", summary: "mark a notification read: read <id>", roles: anyone, run: cmdRead},
		{name: "rm-notification", summary: "delete a notification: rm-notification <id>", roles: anyone, run: cmdRemoveNotification},
		{name: "map", summary: "disaster markers with status and contribution pins", roles: anyone, run: cmdMap},
		{name: "admin", summary: "admin summary | list <kind> | delete <kind> <id>", roles: guard.Roles(models.RoleAdmin), run: cmdAdmin},
	}
}

func findCommand(name string) (command, bool) {
	for _, c := range commands() {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage(w io.Writer, global *flag.FlagSet) {
	fmt.Fprintln(w, "usage: resqnet [flags] <command> [args]")
	fmt.Fprintln(w, "\ncommands:")
	cmds := commands()
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].name < cmds[j].name })
	for _, c := range cmds {
		fmt.Fprintf(w, "  %-16s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w, "\nflags:")
	global.SetOutput(w)
	global.PrintDefaults()
}

// run parses global flags, restores the session, gates the subcommand and
// runs it. It returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg := config.LoadConfig()

	global := flag.NewFlagSet("resqnet", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	apiURL := global.String("api", cfg.APIBaseURL, "ResQNet API base URL")
	home := global.String("home", config.CLIHome(), "directory holding the stored login")
	asJSON := global.Bool("json", false, "print JSON instead of tables")
	verbose := global.Bool("v", false, "verbose logging")
	if err := global.Parse(args); err != nil {
		usage(stderr, global)
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if global.NArg() == 0 {
		usage(stderr, global)
		return exitUsage
	}

	cmd, ok := findCommand(global.Arg(0))
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", global.Arg(0))
		usage(stderr, global)
		return exitUsage
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := obs.NewLogger(obs.LogConfig{Level: level, ServiceName: "resqnet", Pretty: true, Output: stderr})
	obs.SetLogger(logger)

	st, err := store.NewStore(store.StoreConfig{Backend: config.StoreFile, DataDir: *home, FileName: credentialsFile})
	if err != nil {
		fmt.Fprintf(stderr, "open credential store: %v\n", err)
		return exitError
	}
	defer st.Close()

	a := &app{
		cfg:    cfg,
		api:    client.New(*apiURL, client.WithTimeout(cfg.APITimeout), client.WithLogger(logger)),
		store:  st,
		out:    stdout,
		errOut: stderr,
		asJSON: *asJSON,
		log:    logger,
	}
	a.session = session.NewManager(
		// 凭证自身的 exp 决定有效期
		session.KeyedStorage{Store: st, Key: credentialKey},
		session.WithAuthorizer(a.api),
		session.WithNavigator(session.NavigatorFunc(func(location string) { a.reload = location })),
		session.WithLogger(logger),
	)
	a.session.Init(ctx)
	defer a.session.Teardown()

	if !cmd.public {
		if code, ok := a.gate(cmd); !ok {
			return code
		}
	}

	err = cmd.run(ctx, a, global.Args()[1:])
	return a.exitCode(cmd, err)
}

// gate runs the route guard for cmd against the restored session.
func (a *app) gate(cmd command) (int, bool) {
	st := a.session.State()
	d := guard.Decide(st.Authenticated, st.Role(), guard.Target{Path: cmd.name, AllowedRoles: cmd.roles})
	switch d.Outcome {
	case guard.Allow:
		return exitOK, true
	case guard.RedirectLogin:
		fmt.Fprintln(a.errOut, "please log in: resqnet login -email <email>")
		return exitLoggedIn, false
	default:
		fmt.Fprintf(a.errOut, "%s is not available to %s accounts\n", cmd.name, strings.ToLower(string(st.Role())))
		return exitDenied, false
	}
}

// exitCode reports err and maps it onto an exit code. A credential the API
// rejects ends the session the same way the web client does.
func (a *app) exitCode(cmd command, err error) int {
	if err == nil {
		return exitOK
	}

	var verrs models.ValidationErrors
	switch {
	case errors.Is(err, errUsage):
		if err != errUsage {
			fmt.Fprintln(a.errOut, err)
		}
		fmt.Fprintf(a.errOut, "usage: resqnet %s\n", cmd.summary)
		return exitUsage
	case errors.Is(err, context.Canceled):
		return exitOK
	case errors.As(err, &verrs):
		for _, v := range verrs {
			fmt.Fprintf(a.errOut, "%s: %s\n", v.Field, v.Message)
		}
		return exitError
	case errors.Is(err, client.ErrUnauthenticated):
		if lerr := a.session.Logout(context.Background()); lerr != nil {
			a.log.Warn().Err(lerr).Msg("logout cleanup failed")
		}
		if a.reload != "" {
			fmt.Fprintln(a.errOut, "your session has expired, please log in: resqnet login -email <email>")
		}
		return exitLoggedIn
	case errors.Is(err, client.ErrForbidden):
		fmt.Fprintln(a.errOut, client.Message(err))
		return exitDenied
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		for _, v := range apiErr.Fields {
			fmt.Fprintf(a.errOut, "%s: %s\n", v.Field, v.Message)
		}
		return exitError
	}
	msg := err.Error()
	if apiErr != nil || errors.Is(err, client.ErrTransport) {
		msg = client.Message(err)
	}
	fmt.Fprintln(a.errOut, msg)
	a.log.Debug().Err(err).Str("command", cmd.name).Msg("command failed")
	return exitError
}

// passwordFromEnv lets scripts avoid putting the password on the command line.
func passwordFromEnv() string {
	return os.Getenv("RESQNET_PASSWORD")
}
