// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ManuGH/loopcast/internal/job"
	"github.com/ManuGH/loopcast/internal/store"
)

func runJobsCLI(args []string) int {
	return jobsCLI(args, os.Stdout, os.Stderr)
}

func jobsCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printJobsUsage(stdout)
		return 0
	}

	switch args[0] {
	case "list":
		return runJobsList(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printJobsUsage(stderr)
		return 2
	}
}

func printJobsUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  loopcast jobs list [--file|-f config.yaml] [--format=table|json]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Lists the jobs in the configured store. Runtime state is not persisted,")
	_, _ = fmt.Fprintln(w, "so ask a running server (GET /api/jobs) for process status.")
}

func runJobsList(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("loopcast jobs list", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file, format string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	fs.StringVar(&format, "format", "table", "output format: table or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "table" && format != "json" {
		_, _ = fmt.Fprintf(stderr, "Unsupported format: %s (use table or json)\n", format)
		return 2
	}

	cfg, path, err := loadForCLI(file)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", path, err)
		return 1
	}

	st, err := store.Open(store.Config{
		Backend:       cfg.Store.Backend,
		Path:          cfg.Store.Path,
		DataDir:       cfg.DataDir,
		RedisAddr:     cfg.Store.Redis.Addr,
		RedisPassword: cfg.Store.Redis.Password,
		RedisDB:       cfg.Store.Redis.DB,
		RedisPrefix:   cfg.Store.Redis.Prefix,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Failed to open store: %v\n", err)
		return 1
	}
	defer func() { _ = st.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	jobs, err := st.Load(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Failed to load jobs: %v\n", err)
		return 1
	}

	list := make([]job.Persisted, 0, len(jobs))
	for _, p := range jobs {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})

	if format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(list); err != nil {
			_, _ = fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTITLE\tVIDEO\tSCHEDULE\tCREATED")
	for _, p := range list {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.ID, dash(p.Metadata.Title), dash(p.Video), describeSchedule(p.Schedule), p.CreatedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
	return 0
}

func describeSchedule(s job.Schedule) string {
	if !s.Enabled || s.Time == "" {
		return "-"
	}
	days := "daily"
	if !s.EveryDay {
		days = strings.Join(s.Days, ",")
	}
	window := s.Time
	if s.StopTime != "" {
		window += "-" + s.StopTime
	}
	return days + " " + window
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
