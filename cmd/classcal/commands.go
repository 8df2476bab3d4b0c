package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"classcal/internal/capture"
	"classcal/internal/clock"
	"classcal/internal/config"
	"classcal/internal/ics"
	appLog "classcal/internal/log"
	"classcal/internal/model"
	"classcal/internal/schedule"
	"classcal/internal/store"
	"classcal/internal/timetable"
	"classcal/internal/web"
)

func dateFlag() cli.Flag {
	return &cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Date as YYYY-MM-DD (default today)"}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server with the periodic current-session refresher.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config if set)"},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.Close()

			if l := c.String("listen"); l != "" {
				e.cfg.Listen = l
			}
			appLog.Info("classcal starting", "version", version, "listen", e.cfg.Listen, "timezone", e.clock.Location().String())

			ctx := c.Context
			refresher, err := timetable.NewRefresher(e.svc, e.cfg.RefreshCron)
			if err != nil {
				return err
			}
			if err := refresher.Start(ctx); err != nil {
				return err
			}

			if w, ok := e.store.(store.Watcher); ok {
				go func() {
					if err := w.Watch(ctx, func() {
						appLog.Info("definitions changed on disk")
						refresher.Trigger(ctx)
					}); err != nil {
						appLog.Error("store watch stopped", err)
					}
				}()
			}

			go func() {
				if err := config.Watch(ctx, e.configPath, func(next *config.Config) {
					// Only logging is reloaded live; everything else needs a restart.
					applyLogConfig(next.Log, c.String("log-level"))
					if next.Listen != e.cfg.Listen || next.Timezone != e.cfg.Timezone || next.Store != e.cfg.Store {
						appLog.Warn("config changed; restart to apply listen/timezone/store changes")
					}
				}); err != nil {
					appLog.Error("config watch stopped", err)
				}
			}()

			err = web.StartServer(ctx, e.cfg, e.svc, refresher)
			appLog.Info("classcal exiting")
			return err
		},
	}
}

func dayCommand() *cli.Command {
	return &cli.Command{
		Name:  "day",
		Usage: "Print one day's sessions with their collision tracks.",
		Flags: []cli.Flag{dateFlag()},
		Action: func(c *cli.Context) error {
			return runView(c, func(ctx context.Context, svc *timetable.Service, d model.Date) (timetable.View, error) {
				return svc.Day(ctx, d)
			}, printView)
		},
	}
}

func weekCommand() *cli.Command {
	return &cli.Command{
		Name:  "week",
		Usage: "Print the Monday-Sunday week containing --date.",
		Flags: []cli.Flag{dateFlag()},
		Action: func(c *cli.Context) error {
			return runView(c, func(ctx context.Context, svc *timetable.Service, d model.Date) (timetable.View, error) {
				return svc.Week(ctx, d)
			}, printView)
		},
	}
}

func monthCommand() *cli.Command {
	return &cli.Command{
		Name:  "month",
		Usage: "Print the 6-week grid of a month.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "year", Usage: "Year (default current)"},
			&cli.IntFlag{Name: "month", Usage: "Month 1-12 (default current)"},
		},
		Action: func(c *cli.Context) error {
			return runView(c, func(ctx context.Context, svc *timetable.Service, today model.Date) (timetable.View, error) {
				year, month := today.Year, today.Month
				if c.IsSet("year") {
					year = c.Int("year")
				}
				if c.IsSet("month") {
					month = time.Month(c.Int("month"))
				}
				return svc.Month(ctx, year, month)
			}, func(w io.Writer, v timetable.View) {
				printMonthGrid(w, v)
				printView(w, v)
			})
		},
	}
}

func runView(c *cli.Context,
	build func(context.Context, *timetable.Service, model.Date) (timetable.View, error),
	render func(io.Writer, timetable.View),
) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	d := e.clock.Today()
	if raw := c.String("date"); raw != "" {
		if d, err = model.ParseDate(raw); err != nil {
			return fmt.Errorf("--date: %w", err)
		}
	}

	v, err := build(c.Context, e.svc, d)
	if err != nil {
		return err
	}
	render(c.App.Writer, v)
	printProblems(c.App.ErrWriter, v.Problems)
	return nil
}

func nowCommand() *cli.Command {
	return &cli.Command{
		Name:  "now",
		Usage: "Print the session in progress and the next one.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "at", Usage: "Pretend the current instant is this RFC 3339 time"},
		},
		Action: func(c *cli.Context) error {
			var opts []clock.Option
			if raw := c.String("at"); raw != "" {
				at, err := time.Parse(time.RFC3339, raw)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				opts = append(opts, clock.WithNow(clock.Fixed(at)))
			}

			e, err := setup(c, opts...)
			if err != nil {
				return err
			}
			defer e.Close()

			st, err := e.svc.Status(c.Context)
			if err != nil {
				return err
			}
			printStatus(c.App.Writer, st)
			printProblems(c.App.ErrWriter, st.Problems)
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the stored definitions as an iCalendar file.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.Close()

			defs, err := e.store.Load(c.Context)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			for _, perr := range ics.Encode(&buf, defs, e.clock) {
				fmt.Fprintf(c.App.ErrWriter, "skipped: %v\n", perr)
			}

			out := c.String("output")
			if out == "" {
				_, err = c.App.Writer.Write(buf.Bytes())
				return err
			}
			return os.WriteFile(out, buf.Bytes(), 0o644)
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Add the weekly events of an iCalendar file to the store.",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "replace", Usage: "Replace the stored definitions instead of appending"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("import: exactly one FILE argument is required")
			}
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.Close()

			f, err := os.Open(c.Args().First())
			if err != nil {
				return err
			}
			defer f.Close()

			imported, errs := ics.Decode(f, e.clock)
			if imported == nil {
				return errors.Join(errs...)
			}
			for _, perr := range errs {
				fmt.Fprintf(c.App.ErrWriter, "skipped: %v\n", perr)
			}

			valid := imported[:0]
			for _, d := range imported {
				if verr := schedule.Validate(d); verr != nil {
					fmt.Fprintf(c.App.ErrWriter, "skipped %q: %v\n", d.Title, verr)
					continue
				}
				valid = append(valid, d)
			}

			defs := valid
			if !c.Bool("replace") {
				existing, err := e.store.Load(c.Context)
				if err != nil {
					return err
				}
				defs = append(existing, valid...)
			}
			if err := e.store.Save(c.Context, defs); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "imported %d definition(s), %d stored\n", len(valid), len(defs))
			return nil
		},
	}
}

func captureCommand() *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Screenshot the /week page of a running server to PNG.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "Page to capture (default from config)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "PNG path (default from config)"},
			&cli.DurationFlag{Name: "timeout", Value: capture.DefaultTimeoutSec * time.Second},
		},
		Action: func(c *cli.Context) error {
			path := c.String("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			applyLogConfig(cfg.Log, c.String("log-level"))

			opts := capture.Options{
				URL:        cfg.CaptureURL(),
				OutputPath: cfg.Capture.Output,
				Width:      cfg.Capture.Width,
				Height:     cfg.Capture.Height,
				Timeout:    c.Duration("timeout"),
			}
			if u := c.String("url"); u != "" {
				opts.URL = u
			}
			if o := c.String("output"); o != "" {
				opts.OutputPath = o
			}

			if _, err := capture.CapturePNG(c.Context, opts); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "wrote %s\n", opts.OutputPath)
			return nil
		},
	}
}
