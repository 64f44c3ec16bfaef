// Command imapcheck verifies that the configured default mailbox is
// reachable: it connects, opens INBOX, and runs the candidate search
// over the last 24 hours. Useful before starting the server.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/msaqhib/netflix-household-verify/internal/config"
	"github.com/msaqhib/netflix-household-verify/internal/mailbox"
	"github.com/msaqhib/netflix-household-verify/internal/provider"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if cfg.Account.Email == "" {
		fmt.Fprintln(os.Stderr, "error: no mailbox address configured")
		fmt.Fprintln(os.Stderr, "set account.email in the config file or the EMAIL_USER environment variable")
		os.Exit(1)
	}
	if cfg.Account.Password == "" {
		fmt.Fprintln(os.Stderr, "error: no mailbox password configured")
		fmt.Fprintln(os.Stderr, "set account.password in the config file or the EMAIL_PASSWORD environment variable")
		os.Exit(1)
	}

	profile, err := provider.Resolve(cfg.Account.Email)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	fmt.Printf("Connecting to %s:%d as %s...\n", profile.Host, profile.Port, cfg.Account.Email)

	type dialResult struct {
		conn *mailbox.Conn
		err  error
	}
	done := make(chan dialResult, 1)
	go func() {
		conn, err := mailbox.Dial(profile, cfg.Account.Email, cfg.Account.Password, logger)
		done <- dialResult{conn, err}
	}()

	var conn *mailbox.Conn
	select {
	case r := <-done:
		if r.err != nil {
			fmt.Fprintf(os.Stderr, "connection failed: %v\n", r.err)
			fmt.Fprintln(os.Stderr, "If using Gmail, make sure 2-Step Verification is enabled and use an App Password.")
			os.Exit(1)
		}
		conn = r.conn
	case <-time.After(cfg.Timeouts.ConnectTimeout()):
		fmt.Fprintln(os.Stderr, "connection attempt timed out")
		fmt.Fprintln(os.Stderr, "Check your internet connection and that your provider allows IMAP access.")
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Println("Connection successful, INBOX opened.")

	uids, phase, err := conn.Search(24 * time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "search failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d candidate message(s) (%s phase).\n", len(uids), phase)
	fmt.Println("Check completed successfully.")
}
