// Command manage administers working-hour rules, settings, and bookings
// from the command line. It talks to the same tables the engine reads.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"psybooking-service/internal/config"
	"psybooking-service/internal/engine"
	"psybooking-service/internal/store/postgres"
)

const usage = `usage: manage <command> [flags]

commands:
  init          create schema and seed defaults
  hours         show weekly working hours
  set-hours     set working hours for one day (-day -start -end -active)
  settings      show current settings
  set-setting   write one setting (-key -value)
  bookings      list live future bookings
  cancel        cancel a booking (-id)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal(err)
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

	switch os.Args[1] {
	case "init":
		defaults := engine.DefaultSettings()
		defaults.TimezoneName = cfg.PrimaryTZ
		if err := store.Init(ctx, defaults); err != nil {
			fatal(err)
		}
		fmt.Println("database initialized")

	case "hours":
		rules, err := store.Rules(ctx)
		if err != nil {
			fatal(err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DAY\tHOURS\tACTIVE")
		for _, r := range rules {
			fmt.Fprintf(w, "%s\t%s-%s\t%v\n", r.DayOfWeek, r.StartTime, r.EndTime, r.IsActive)
		}
		w.Flush()

	case "set-hours":
		fs := flag.NewFlagSet("set-hours", flag.ExitOnError)
		day := fs.Int("day", -1, "day of week (0=Sunday..6=Saturday)")
		start := fs.String("start", "", "start time, e.g. 10:00")
		end := fs.String("end", "", "end time, e.g. 19:00")
		active := fs.Bool("active", true, "whether the day is bookable")
		fs.Parse(os.Args[2:])
		if *day < 0 || *day > 6 || *start == "" || *end == "" {
			fatal(fmt.Errorf("set-hours requires -day 0..6, -start, -end"))
		}
		rule := engine.WorkingHourRule{
			DayOfWeek: time.Weekday(*day),
			StartTime: *start,
			EndTime:   *end,
			IsActive:  *active,
		}
		if err := store.UpsertRule(ctx, rule); err != nil {
			fatal(err)
		}
		fmt.Printf("%s set to %s-%s (active=%v)\n", rule.DayOfWeek, *start, *end, *active)

	case "settings":
		st, err := store.LoadSettings(ctx)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("primary_tz\t%s\n", st.TimezoneName)
		fmt.Printf("min_hours_before_booking\t%d\n", st.MinLeadHours)
		fmt.Printf("session_duration_minutes\t%d\n", st.SessionMinutes)
		fmt.Printf("max_active_bookings_per_client\t%d\n", st.MaxActiveBookings)
		fmt.Printf("rate_limit_per_minute\t%d\n", st.RateLimitPerMinute)
		fmt.Printf("days_ahead_to_show\t%d\n", st.DaysAheadToShow)
		fmt.Printf("calendar_id\t%s\n", st.CalendarID)

	case "set-setting":
		fs := flag.NewFlagSet("set-setting", flag.ExitOnError)
		key := fs.String("key", "", "setting key")
		value := fs.String("value", "", "setting value")
		fs.Parse(os.Args[2:])
		if *key == "" || *value == "" {
			fatal(fmt.Errorf("set-setting requires -key and -value"))
		}
		if err := store.SetSetting(ctx, *key, *value); err != nil {
			fatal(err)
		}
		fmt.Printf("%s = %s\n", *key, *value)

	case "bookings":
		bookings, err := store.FutureBookings(ctx)
		if err != nil {
			fatal(err)
		}
		if len(bookings) == 0 {
			fmt.Println("no future bookings")
			return
		}
		st, err := store.LoadSettings(ctx)
		if err != nil {
			fatal(err)
		}
		loc, err := st.Location()
		if err != nil {
			loc = time.UTC
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTART (local)\tSTATUS\tCLIENT\tEVENT")
		for _, b := range bookings {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				b.ID, b.StartAtUTC.In(loc).Format("02.01.2006 15:04"),
				b.Status, b.Client.DisplayName(), b.GoogleEventID)
		}
		w.Flush()

	case "cancel":
		fs := flag.NewFlagSet("cancel", flag.ExitOnError)
		id := fs.String("id", "", "booking id")
		fs.Parse(os.Args[2:])
		if *id == "" {
			fatal(fmt.Errorf("cancel requires -id"))
		}
		if err := store.Cancel(ctx, *id); err != nil {
			fatal(err)
		}
		fmt.Printf("booking %s cancelled\n", *id)

	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
