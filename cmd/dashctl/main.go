package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"hostdesk/internal/api"
	"hostdesk/internal/config"
	"hostdesk/internal/dashboard"
	"hostdesk/internal/datetime"

	"github.com/rs/zerolog"
)

const usage = "usage: dashctl [show|previous|next|today|finish] [flags]"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zerolog.WarnLevel).With().Timestamp().Logger()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, &logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer, logger *zerolog.Logger) error {
	if len(args) < 1 {
		return errors.New(usage)
	}

	cmd := args[0]
	switch cmd {
	case "show", "previous", "next", "today", "finish":
	default:
		return fmt.Errorf("unknown command: %s\n%s", cmd, usage)
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(out)
	apiURL := fs.String("api", os.Getenv("DASHBOARD_API_URL"), "reservations API base URL")
	apiKey := fs.String("key", os.Getenv("DASHBOARD_API_KEY"), "reservations API key")
	date := fs.String("date", "", "date (YYYY-MM-DD), today when empty")
	tableID := fs.Int64("table", 0, "table id (finish only)")
	timeout := fs.Duration("timeout", 10*time.Second, "load timeout")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	if *apiURL == "" {
		cfg, err := config.Load(config.Path())
		if err != nil {
			return fmt.Errorf("no -api given and config unavailable: %w", err)
		}
		*apiURL = cfg.API.BaseURL
		if *apiKey == "" {
			*apiKey = cfg.API.APIKey
		}
	}

	if cmd == "finish" && *tableID <= 0 {
		return errors.New("-table is required")
	}

	clock := datetime.SystemClock(nil)
	if *date == "" {
		*date = datetime.Today(clock)
	} else if !datetime.Valid(*date) {
		return datetime.ErrInvalidDate
	}

	client := api.NewClient(*apiURL, *apiKey, *timeout, logger)

	var d *dashboard.Dashboard
	// Navigation re-targets the dashboard in place.
	nav := dashboard.NavigatorFunc(func(location string) {
		if next, ok := dashboard.DateFromLocation(location); ok {
			d.SetDate(next)
		}
	})
	d = dashboard.New(client,
		dashboard.WithClock(clock),
		dashboard.WithLogger(logger),
		dashboard.WithLoadTimeout(*timeout),
		dashboard.WithNavigator(nav),
		dashboard.WithConfirmer(dashboard.NewPromptConfirmer(in, out)),
	)
	d.Mount(ctx, *date)
	defer d.Unmount()

	switch cmd {
	case "show":
	case "previous":
		if err := d.PreviousDay(*date); err != nil {
			return err
		}
	case "next":
		if err := d.NextDay(*date); err != nil {
			return err
		}
	case "today":
		d.Today()
	case "finish":
		if err := d.Wait(ctx); err != nil {
			return err
		}
		finished, err := d.FinishReservation(ctx, *tableID)
		switch {
		case err != nil:
			fmt.Fprintf(out, "Table %d was not finished.\n", *tableID)
		case finished:
			fmt.Fprintf(out, "Table %d finished.\n", *tableID)
		default:
			fmt.Fprintln(out, "Cancelled.")
		}
	}

	if err := d.Wait(ctx); err != nil {
		return err
	}
	printView(out, d.View())
	return nil
}

func printView(out io.Writer, view dashboard.View) {
	fmt.Fprintf(out, "Dashboard\nToday's Date: %s\n", view.Date)
	if view.Error != nil {
		fmt.Fprintf(out, "Error: %s\n", view.Error)
	}

	fmt.Fprintln(out, "\nReservations")
	if len(view.Reservations) == 0 {
		fmt.Fprintln(out, "No reservations found.")
	} else {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tNAME\tMOBILE\tTIME\tPEOPLE\tSTATUS")
		for _, r := range view.Reservations {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", r.ID, r.FullName(), r.MobileNumber, r.ReservationTime, r.People, r.Status)
		}
		_ = tw.Flush()
	}

	fmt.Fprintln(out, "\nTables")
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTABLE\tCAPACITY\tSTATUS")
	for _, t := range view.Tables {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", t.ID, t.Name, t.Capacity, t.StatusLabel())
	}
	_ = tw.Flush()
}
