// presalectl is a small client for a running presale server.
//
//	presalectl time        report the clock offset against the server
//	presalectl countdown   live countdown board for public events
//	presalectl admin-token mint an admin JWT from the shared secret
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/Shivanand-hulikatti/event-presale/internal/auth"
	"github.com/Shivanand-hulikatti/event-presale/internal/clock"
	"github.com/Shivanand-hulikatti/event-presale/internal/model"
)

const defaultServer = "http://localhost:8080"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).Level(zerolog.WarnLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(out)
		return nil
	}

	switch args[0] {
	case "time":
		return runTime(ctx, args[1:], out)
	case "countdown":
		return runCountdown(ctx, args[1:], out)
	case "admin-token":
		return runAdminToken(args[1:], out)
	}
	return fmt.Errorf("unknown command %q (try --help)", args[0])
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, `usage: presalectl <command> [flags]

commands:
  time         estimate the local clock offset against the server
  countdown    show live countdowns for public events
  admin-token  mint an admin bearer token`)
}

// parseFlags handles --help uniformly; done is true when the caller should
// return without error.
func parseFlags(fs *pflag.FlagSet, args []string, out io.Writer) (done bool, err error) {
	fs.SetOutput(out)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return true, err
	}
	return false, nil
}

func newSynchronizer(server string, timeout time.Duration, retries int) *clock.Synchronizer {
	return clock.NewSynchronizer(
		clock.NewHTTPTimeSource(server, timeout),
		clock.WithRetry(retries, clock.DefaultRetryInterval),
	)
}

func runTime(ctx context.Context, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("time", pflag.ContinueOnError)
	server := fs.StringP("server", "s", defaultServer, "presale server base URL")
	timeout := fs.Duration("timeout", 5*time.Second, "per-request timeout")
	retries := fs.Int("retries", clock.DefaultMaxRetries, "retries before falling back to local time")
	if done, err := parseFlags(fs, args, out); done {
		return err
	}

	sync := newSynchronizer(*server, *timeout, *retries)
	offset, err := sync.Sync(ctx)
	if err != nil && !errors.Is(err, clock.ErrDegraded) {
		return err
	}

	fmt.Fprintf(out, "server:   %s\n", *server)
	fmt.Fprintf(out, "offset:   %s\n", offset)
	fmt.Fprintf(out, "now:      %s\n", sync.Now().UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(out, "degraded: %t\n", sync.Degraded())
	return nil
}

// fetchEvents reads the public event list from the server.
func fetchEvents(ctx context.Context, client *http.Client, server string) ([]model.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(server, "/")+"/api/public/events", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool              `json:"success"`
		Data    []model.EventView `json:"data"`
		Error   string            `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !envelope.Success {
		return nil, fmt.Errorf("events endpoint returned %d: %s", resp.StatusCode, envelope.Error)
	}

	events := make([]model.Event, 0, len(envelope.Data))
	for _, v := range envelope.Data {
		events = append(events, v.Event)
	}
	return events, nil
}

// renderBoard writes one line per entry ordered by target then name.
func renderBoard(out io.Writer, entries map[string]clock.Entry) {
	list := make([]clock.Entry, 0, len(entries))
	for _, e := range entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Target.Equal(list[j].Target) {
			return list[i].Target.Before(list[j].Target)
		}
		return list[i].EventName < list[j].EventName
	})

	if len(list) == 0 {
		fmt.Fprintln(out, "no pending countdowns")
		return
	}
	for _, e := range list {
		fmt.Fprintf(out, "%-32s %-8s %s\n", e.EventName, e.Kind, e.Countdown.String())
	}
}

func runCountdown(ctx context.Context, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("countdown", pflag.ContinueOnError)
	server := fs.StringP("server", "s", defaultServer, "presale server base URL")
	timeout := fs.Duration("timeout", 5*time.Second, "per-request timeout")
	once := fs.Bool("once", false, "print the board once and exit")
	if done, err := parseFlags(fs, args, out); done {
		return err
	}

	sync := newSynchronizer(*server, *timeout, clock.DefaultMaxRetries)
	if _, err := sync.Sync(ctx); err != nil {
		if !errors.Is(err, clock.ErrDegraded) {
			return err
		}
		fmt.Fprintln(out, "warning: clock sync failed, countdowns use local time")
	}

	events, err := fetchEvents(ctx, &http.Client{Timeout: *timeout}, *server)
	if err != nil {
		return err
	}

	tracker := clock.NewTracker(sync, clockwork.NewRealClock(), events)
	if *once {
		tracker.Update()
		renderBoard(out, tracker.Snapshot())
		return nil
	}

	err = tracker.Run(ctx, func(entries map[string]clock.Entry) {
		fmt.Fprintf(out, "\n%s\n", sync.Now().UTC().Format(time.RFC3339))
		renderBoard(out, entries)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runAdminToken(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("admin-token", pflag.ContinueOnError)
	secret := fs.String("secret", os.Getenv("ADMIN_JWT_SECRET"), "signing secret (defaults to $ADMIN_JWT_SECRET)")
	subject := fs.String("subject", "admin", "token subject")
	ttl := fs.Duration("ttl", 12*time.Hour, "token lifetime")
	if done, err := parseFlags(fs, args, out); done {
		return err
	}
	if *secret == "" {
		return errors.New("--secret or ADMIN_JWT_SECRET is required")
	}

	token, err := auth.NewIssuer(*secret, nil).Issue(*subject, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}
