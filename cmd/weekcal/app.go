package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"weekcal/internal/config"
	"weekcal/internal/ics"
	appLog "weekcal/internal/log"
	"weekcal/internal/model"
	"weekcal/internal/recur"
	"weekcal/internal/store"
	"weekcal/internal/timeslot"
	"weekcal/internal/web"
)

const dateLayout = "2006-01-02"

func newApp() *cli.App {
	return &cli.App{
		Name:    "weekcal",
		Usage:   "In-memory week/month calendar with recurring events",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the YAML config (created with defaults on first run)",
				Value:   "./weekcal.yaml",
				EnvVars: []string{"WEEKCAL_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error (overrides config)",
				EnvVars: []string{"WEEKCAL_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			expandCommand(),
			slotCommand(),
		},
	}
}

// loadConfig reads the config and applies the global log level. Only
// serve writes a default file on first run; the other commands just read.
func loadConfig(c *cli.Context, writeDefault bool) (*config.Config, *time.Location, error) {
	path := c.String("config")
	load := config.Read
	if writeDefault {
		load = config.Load
	}
	conf, err := load(path)
	if err != nil {
		if conf == nil {
			return nil, nil, fmt.Errorf("load config %s: %w", path, err)
		}
		appLog.Error("config could not be saved; continuing with defaults", err, "config_path", path)
	}

	level := conf.LogLevel
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	appLog.SetLevel(appLog.ParseLevel(level))

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "timezone", conf.Timezone)
	}
	return conf, loc, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the subscription refresh schedule",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "HTTP listen address (overrides config)",
				EnvVars: []string{"WEEKCAL_LISTEN"},
			},
			&cli.StringFlag{
				Name:  "import",
				Usage: "ICS file whose events are loaded at startup",
			},
		},
		Action: func(c *cli.Context) error {
			conf, loc, err := loadConfig(c, true)
			if err != nil {
				return err
			}
			if c.IsSet("listen") {
				conf.Listen = c.String("listen")
			}

			appLog.Info("weekcal starting",
				"version", version,
				"listen", conf.Listen,
				"timezone", loc.String(),
				"week_start", conf.WeekStart,
				"month_start", conf.MonthStart,
				"lookahead_days", conf.LookaheadDays,
				"subscriptions", len(conf.Subscriptions),
			)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st := store.New()
			if path := c.String("import"); path != "" {
				if err := importFile(st, path); err != nil {
					return err
				}
			}

			sched, err := startRefresh(ctx, conf, st, loc)
			if err != nil {
				return err
			}
			if sched != nil {
				defer sched.Stop()
			}

			srv := &http.Server{
				Addr:              conf.Listen,
				Handler:           web.NewServer(conf, st, loc).Handler(),
				ReadHeaderTimeout: 5 * time.Second,
				WriteTimeout:      15 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				appLog.Info("shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("http shutdown: %w", err)
			}
			appLog.Info("weekcal exiting")
			return nil
		},
	}
}

// startRefresh runs one refresh immediately and schedules the rest. It
// returns nil when no subscriptions are configured.
func startRefresh(ctx context.Context, conf *config.Config, st *store.Store, loc *time.Location) (*cron.Cron, error) {
	if len(conf.Subscriptions) == 0 {
		return nil, nil
	}

	subs := make([]ics.Subscription, 0, len(conf.Subscriptions))
	for _, s := range conf.Subscriptions {
		if s.URL == "" {
			continue
		}
		subs = append(subs, ics.Subscription{ID: s.ID, URL: s.URL})
	}
	refresher := ics.NewRefresher(ics.NewFetcher(nil, conf.CacheDir), st, subs)

	run := func() {
		if err := refresher.Refresh(ctx); err != nil {
			appLog.Error("subscription refresh failed", err)
		}
	}

	sched, runNow, err := newRefreshSchedule(loc, conf.RefreshCron, run)
	if err != nil {
		return nil, err
	}
	go runNow()
	sched.Start()
	appLog.Info("subscription refresh scheduled", "cron", conf.RefreshCron, "count", len(subs))
	return sched, nil
}

// newRefreshSchedule registers job on spec. The returned runNow invokes
// the same wrapped job, so an immediate run and a scheduled tick never
// overlap: whichever comes second is skipped.
func newRefreshSchedule(loc *time.Location, spec string, job func()) (*cron.Cron, func(), error) {
	logger := cronLogger{}
	sched := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	id, err := sched.AddFunc(spec, job)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	wrapped := sched.Entry(id).WrappedJob
	return sched, wrapped.Run, nil
}

// cronLogger routes cron's own messages through appLog.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}

func importFile(st *store.Store, path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	events, err := ics.Import("", body)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	for _, ev := range events {
		if _, err := st.Add(ev); err != nil {
			appLog.Warn("import: event rejected", "id", ev.ID, "reason", err.Error())
		}
	}
	appLog.Info("import completed", "path", path, "events", st.Len())
	return nil
}

func expandCommand() *cli.Command {
	return &cli.Command{
		Name:  "expand",
		Usage: "Print the occurrences of an ICS file's events inside a date window",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ics", Usage: "ICS file to read", Required: true},
			&cli.StringFlag{Name: "from", Usage: "first day, YYYY-MM-DD (default today)"},
			&cli.StringFlag{Name: "to", Usage: "last day, YYYY-MM-DD (default from + 6 days)"},
			&cli.BoolFlag{Name: "sorted", Usage: "sort occurrences by start time"},
		},
		Action: func(c *cli.Context) error {
			_, loc, err := loadConfig(c, false)
			if err != nil {
				return err
			}

			body, err := os.ReadFile(c.String("ics"))
			if err != nil {
				return err
			}
			events, err := ics.Import("", body)
			if err != nil {
				return err
			}

			from, to, err := parseWindow(c.String("from"), c.String("to"), time.Now().In(loc), loc)
			if err != nil {
				return err
			}

			occ := recur.Expand(events, from, to)
			if c.Bool("sorted") {
				recur.SortByStart(occ)
			}
			for _, ev := range occ {
				fmt.Fprintln(c.App.Writer, formatOccurrence(ev, loc))
			}
			return nil
		},
	}
}

// parseWindow returns [from 00:00, to 23:59:59.999999999] in loc.
func parseWindow(fromStr, toStr string, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if fromStr != "" {
		t, err := time.ParseInLocation(dateLayout, fromStr, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from %q", fromStr)
		}
		from = t
	}

	last := from.AddDate(0, 0, 6)
	if toStr != "" {
		t, err := time.ParseInLocation(dateLayout, toStr, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to %q", toStr)
		}
		last = t
	}
	return from, last.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func formatOccurrence(ev model.Event, loc *time.Location) string {
	start := ev.Start.In(loc)
	end := ev.End.In(loc)
	repeat := ev.Repeat
	if repeat == "" {
		repeat = model.RepeatNone
	}
	return fmt.Sprintf("%s %s-%s\t%s\t[%s]",
		start.Format(dateLayout),
		timeslot.FromTime(start),
		timeslot.FromTime(end),
		ev.Title,
		repeat,
	)
}

func slotCommand() *cli.Command {
	return &cli.Command{
		Name:  "slot",
		Usage: "Print the nearest quarter hour, or shift an HH:MM time by --add minutes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "at", Usage: "HH:MM to shift instead of using the current time"},
			&cli.IntFlag{Name: "add", Usage: "minutes to add"},
		},
		Action: func(c *cli.Context) error {
			if at := c.String("at"); at != "" {
				out, err := timeslot.AddMinutes(at, c.Int("add"))
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, out)
				return nil
			}

			_, loc, err := loadConfig(c, false)
			if err != nil {
				return err
			}
			now := time.Now().In(loc)
			if c.IsSet("add") {
				start, end := timeslot.Suggest(now, c.Int("add"))
				fmt.Fprintf(c.App.Writer, "%s %s\n", start, end)
				return nil
			}
			fmt.Fprintln(c.App.Writer, timeslot.NearestQuarterHour(now))
			return nil
		},
	}
}
