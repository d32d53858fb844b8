package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"resqnet-web/pkg/client"
	"resqnet-web/pkg/guard"
	"resqnet-web/pkg/markers"
	"resqnet-web/pkg/models"
	"resqnet-web/pkg/poller"
	"resqnet-web/pkg/session"
)

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseFlags parses args and checks that every name in required was given.
func parseFlags(fs *flag.FlagSet, args []string, required ...string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	seen := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	for _, name := range required {
		if !seen[name] {
			return fmt.Errorf("%w: -%s is required", errUsage, name)
		}
	}
	return nil
}

// optionalFloat reads a float flag that may be absent.
func optionalFloat(fs *flag.FlagSet, name string) (*float64, error) {
	f := fs.Lookup(name)
	given := false
	fs.Visit(func(v *flag.Flag) {
		if v.Name == name {
			given = true
		}
	})
	if !given {
		return nil, nil
	}
	v, err := strconv.ParseFloat(f.Value.String(), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: -%s must be a number", errUsage, name)
	}
	return &v, nil
}

func argID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", errUsage)
	}
	return id, nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", passwordFromEnv(), "password (or $RESQNET_PASSWORD)")
	if err := parseFlags(fs, args, "email"); err != nil {
		return err
	}

	resp, err := a.api.Login(ctx, models.UserLoginRequest{Email: *email, Password: *password})
	if err != nil {
		// 登录时的 401 是密码错误，不是会话过期
		if errors.Is(err, client.ErrUnauthenticated) {
			return errors.New("invalid email or password")
		}
		return err
	}
	id, err := a.session.Login(ctx, resp.Token)
	if err != nil {
		if session.IsCredentialError(err) {
			return fmt.Errorf("the server issued an unusable credential: %w", err)
		}
		return err
	}

	if a.asJSON {
		return a.printJSON(map[string]interface{}{"identity": id, "landing": guard.LandingPath(id.Role)})
	}
	fmt.Fprintf(a.out, "logged in as %s (%s)\n", id.Subject, id.Role)
	return nil
}

func cmdLogout(ctx context.Context, a *app, args []string) error {
	if !a.session.IsAuthenticated() {
		fmt.Fprintln(a.out, "not logged in")
		return nil
	}
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, args []string) error {
	st := a.session.State()
	if a.asJSON {
		return a.printJSON(st)
	}
	if !st.Authenticated {
		fmt.Fprintln(a.out, "not logged in")
		return nil
	}
	fmt.Fprintf(a.out, "%s (%s)", st.Identity.Subject, st.Identity.Role)
	if !st.Identity.ExpiresAt.IsZero() {
		fmt.Fprintf(a.out, ", expires %s", st.Identity.ExpiresAt.Local().Format(time.RFC1123))
	}
	fmt.Fprintln(a.out)
	return nil
}

func cmdDisasters(ctx context.Context, a *app, args []string) error {
	fs := newFlags("disasters")
	mine := fs.Bool("mine", false, "only disasters I reported")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	list, err := a.api.ListDisasters(ctx)
	if err != nil {
		return err
	}
	if *mine {
		subject := a.session.State().Identity.Subject
		filtered := list[:0]
		for _, d := range list {
			if strings.EqualFold(d.ReporterEmail, subject) {
				filtered = append(filtered, d)
			}
		}
		list = filtered
	}
	if a.asJSON {
		return a.printJSON(list)
	}
	return a.table([]string{"ID", "TYPE", "SEVERITY", "LAT", "LON", "REPORTER", "CREATED"}, func(row func(...interface{})) {
		for _, d := range list {
			row(d.ID, d.Type, d.Severity, d.Latitude, d.Longitude, d.ReporterEmail, formatTime(d.CreatedAt))
		}
	})
}

func cmdReport(ctx context.Context, a *app, args []string) error {
	fs := newFlags("report")
	kind := fs.String("type", "", "disaster type, e.g. Flood")
	severity := fs.String("severity", "", "LOW, MEDIUM or HIGH")
	description := fs.String("description", "", "what happened")
	lat := fs.Float64("lat", 0, "latitude")
	lon := fs.Float64("lon", 0, "longitude")
	if err := parseFlags(fs, args, "type", "severity", "lat", "lon"); err != nil {
		return err
	}
	d, err := a.api.CreateDisaster(ctx, models.DisasterInput{
		Type:        *kind,
		Severity:    models.Severity(*severity),
		Description: *description,
		Latitude:    *lat,
		Longitude:   *lon,
	})
	if err != nil {
		return err
	}
	if a.asJSON {
		return a.printJSON(d)
	}
	fmt.Fprintf(a.out, "reported disaster #%d (%s, %s)\n", d.ID, d.Type, d.Severity)
	return nil
}

func cmdRequests(ctx context.Context, a *app, args []string) error {
	fs := newFlags("requests")
	rawStatus := fs.String("status", "", "REPORTED, PARTIAL or FULFILLED")
	disasterID := fs.Int64("disaster", 0, "only requests for this disaster")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	var status models.RequestStatus
	if *rawStatus != "" {
		var ok bool
		if status, ok = models.ParseStatusFilter(*rawStatus); !ok {
			return fmt.Errorf("%w: -status must be REPORTED, PARTIAL or FULFILLED", errUsage)
		}
	}

	fetch := a.api.ListRequests
	if a.session.State().Role() == models.RoleReporter {
		fetch = a.api.ListMyRequests
	}
	requests, err := fetch(ctx)
	if err != nil {
		return err
	}

	views := make([]markers.RequestView, 0, len(requests))
	for _, v := range markers.ViewRequests(requests) {
		if status != "" && v.DisplayStatus != status {
			continue
		}
		if *disasterID != 0 && v.DisasterID != *disasterID {
			continue
		}
		views = append(views, v)
	}
	if a.asJSON {
		return a.printJSON(views)
	}
	return a.table([]string{"ID", "DISASTER", "CATEGORY", "FULFILLED", "STATUS", "PROGRESS"}, func(row func(...interface{})) {
		for _, v := range views {
			row(v.ID, v.DisasterID, v.Category,
				fmt.Sprintf("%d/%d", v.FulfilledQuantity, v.RequestedQuantity),
				v.DisplayStatus, v.ProgressPercent.String()+"%")
		}
	})
}

func cmdRequest(ctx context.Context, a *app, args []string) error {
	fs := newFlags("request")
	disasterID := fs.Int64("disaster", 0, "disaster id")
	category := fs.String("category", "", "what is needed")
	quantity := fs.Int("quantity", 0, "how many")
	if err := parseFlags(fs, args, "disaster", "category", "quantity"); err != nil {
		return err
	}
	req, err := a.api.CreateRequest(ctx, models.ResourceRequestInput{
		DisasterID:        *disasterID,
		Category:          *category,
		RequestedQuantity: *quantity,
	})
	if err != nil {
		return err
	}
	if a.asJSON {
		return a.printJSON(req)
	}
	fmt.Fprintf(a.out, "created request #%d: %d %s for disaster #%d\n", req.ID, req.RequestedQuantity, req.Category, req.DisasterID)
	return nil
}

func cmdContribute(ctx context.Context, a *app, args []string) error {
	fs := newFlags("contribute")
	requestID := fs.Int64("request", 0, "request id")
	category := fs.String("category", "", "food, water, medical or shelter")
	quantity := fs.Int("quantity", 0, "how many")
	fs.Float64("lat", 0, "where the help is (optional)")
	fs.Float64("lon", 0, "where the help is (optional)")
	if err := parseFlags(fs, args, "request", "category", "quantity"); err != nil {
		return err
	}
	lat, err := optionalFloat(fs, "lat")
	if err != nil {
		return err
	}
	lon, err := optionalFloat(fs, "lon")
	if err != nil {
		return err
	}

	c, err := a.api.CreateContribution(ctx, models.ContributionInput{
		RequestID:           *requestID,
		Category:            *category,
		ContributedQuantity: *quantity,
		Latitude:            lat,
		Longitude:           lon,
	})
	if err != nil {
		return err
	}
	if a.asJSON {
		return a.printJSON(c)
	}
	fmt.Fprintf(a.out, "contributed %d %s to request #%d\n", c.ContributedQuantity, c.Category, c.RequestID)
	return nil
}

// cmdContributions shows contributions received against a reporter's own
// requests, or those a responder made.
func cmdContributions(ctx context.Context, a *app, args []string) error {
	st := a.session.State()

	var list []models.Contribution
	if st.Role() == models.RoleReporter {
		requests, err := a.api.ListMyRequests(ctx)
		if err != nil {
			return err
		}
		if list, err = a.api.ListContributionsForRequests(ctx, requests); err != nil {
			return err
		}
	} else {
		var err error
		if list, err = a.api.ListContributionsByResponder(ctx, st.Identity.Subject); err != nil {
			return err
		}
	}

	if a.asJSON {
		return a.printJSON(list)
	}
	return a.table([]string{"ID", "REQUEST", "CATEGORY", "QTY", "RESPONDER", "LOCATION", "UPDATED"}, func(row func(...interface{})) {
		for _, c := range list {
			loc := "-"
			if c.HasLocation() {
				loc = fmt.Sprintf("%.4f,%.4f", *c.Latitude, *c.Longitude)
			}
			row(c.ID, c.RequestID, c.Category, c.ContributedQuantity, c.ResponderEmail, loc, formatTime(c.UpdatedAt))
		}
	})
}

func cmdNotifications(ctx context.Context, a *app, args []string) error {
	fs := newFlags("notifications")
	unread := fs.Bool("unread", false, "only unread notifications")
	watch := fs.Bool("watch", false, "keep polling until interrupted")
	interval := fs.Duration("interval", a.cfg.NotificationPollInterval, "poll interval with -watch")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	fetch := a.api.ListNotifications
	if *unread {
		fetch = a.api.ListUnreadNotifications
	}

	if !*watch {
		list, err := fetch(ctx)
		if err != nil {
			return err
		}
		return a.printNotifications(list)
	}

	var stopErr error
	err := poller.New(*interval, fetch).Run(ctx, func(list []models.Notification, err error) bool {
		switch {
		case err == nil:
			if perr := a.printNotifications(list); perr != nil {
				stopErr = perr
				return false
			}
		case errors.Is(err, client.ErrUnauthenticated):
			stopErr = err
			return false
		default:
			a.log.Warn().Err(err).Msg("notification poll failed")
		}
		return true
	})
	if stopErr != nil {
		return stopErr
	}
	if errors.Is(err, poller.ErrStopped) || ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *app) printNotifications(list []models.Notification) error {
	if a.asJSON {
		return a.printJSON(map[string]interface{}{"notifications": list, "unread": models.UnreadCount(list)})
	}
	fmt.Fprintf(a.out, "%d notifications, %d unread\n", len(list), models.UnreadCount(list))
	return a.table([]string{"ID", "", "TYPE", "MESSAGE", "CREATED"}, func(row func(...interface{})) {
		for _, n := range list {
			mark := " "
			if !n.Read {
				mark = "*"
			}
			row(n.ID, mark, n.Type, n.Message, formatTime(n.CreatedAt))
		}
	})
}

func cmdRead(ctx context.Context, a *app, args []string) error {
	id, err := argID(args)
	if err != nil {
		return err
	}
	if err := a.api.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "notification #%d marked read\n", id)
	return nil
}

// cmdRemoveNotification deletes a notification the API marks deletable.
func cmdRemoveNotification(ctx context.Context, a *app, args []string) error {
	id, err := argID(args)
	if err != nil {
		return err
	}
	list, err := a.api.ListNotifications(ctx)
	if err != nil {
		return err
	}
	var target *models.Notification
	for i := range list {
		if list[i].ID == id {
			target = &list[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("notification #%d not found", id)
	}
	if !target.Deletable {
		return fmt.Errorf("notification #%d cannot be deleted", id)
	}
	if err := a.api.DeleteNotification(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "notification #%d deleted\n", id)
	return nil
}

// cmdMap prints the dashboard map as text: one line per disaster marker and
// one indented line per contribution pin.
func cmdMap(ctx context.Context, a *app, args []string) error {
	role := a.session.State().Role()

	var (
		disasters     []models.Disaster
		requests      []models.ResourceRequest
		contributions []models.Contribution
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		disasters, err = a.api.ListDisasters(gctx)
		return err
	})
	g.Go(func() (err error) {
		if role == models.RoleReporter {
			if requests, err = a.api.ListMyRequests(gctx); err != nil {
				return err
			}
		} else if requests, err = a.api.ListRequests(gctx); err != nil {
			return err
		}
		contributions, err = a.api.ListContributionsForRequests(gctx, requests)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	ms := markers.BuildDisasterMarkers(disasters, requests, contributions)
	legend := markers.CountByStatus(ms)
	if a.asJSON {
		return a.printJSON(map[string]interface{}{"markers": ms, "legend": legend})
	}

	for _, m := range ms {
		fmt.Fprintf(a.out, "#%d %s [%s] %.4f,%.4f %s, %d requests\n",
			m.Disaster.ID, m.Disaster.Type, m.Disaster.Severity,
			m.Disaster.Latitude, m.Disaster.Longitude, m.Status, m.RequestCount)
		for _, p := range m.Pins {
			who := p.ResponderName
			if who == "" {
				who = p.ResponderEmail
			}
			fmt.Fprintf(a.out, "    pin %.4f,%.4f %s: %d (%s)\n",
				p.Latitude, p.Longitude, who, p.TotalQuantity, strings.Join(p.Categories, ", "))
		}
	}
	fmt.Fprintf(a.out, "reported %d, partial %d, fulfilled %d\n",
		legend[models.DisplayReported], legend[models.DisplayPartial], legend[models.DisplayFulfilled])
	return nil
}

func cmdAdmin(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "summary":
		s, err := a.api.AdminSummary(ctx)
		if err != nil {
			return err
		}
		if a.asJSON {
			return a.printJSON(s)
		}
		fmt.Fprintf(a.out, "users %d, disasters %d, requests %d, contributions %d\n",
			s.TotalUsers, s.TotalDisasters, s.TotalRequests, s.TotalContributions)
		printCounts(a.out, "requests by status", s.RequestStatusCounts)
		printCounts(a.out, "users by role", s.UserRoleCounts)
		return nil

	case "list":
		if len(args) != 2 {
			return errUsage
		}
		kind, ok := client.ParseAdminKind(args[1])
		if !ok {
			return fmt.Errorf("%w: unknown collection %q", errUsage, args[1])
		}
		list, err := a.api.AdminList(ctx, kind)
		if err != nil {
			return err
		}
		return a.printJSON(list)

	case "delete":
		if len(args) != 3 {
			return errUsage
		}
		kind, ok := client.ParseAdminKind(args[1])
		if !ok {
			return fmt.Errorf("%w: unknown collection %q", errUsage, args[1])
		}
		id, err := argID(args[2:])
		if err != nil {
			return err
		}
		if err := a.api.AdminDelete(ctx, kind, id); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "deleted %s #%d\n", strings.TrimSuffix(string(kind), "s"), id)
		return nil
	}
	return errUsage
}
