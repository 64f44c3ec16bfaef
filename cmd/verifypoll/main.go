package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"

	"github.com/msaqhib/netflix-household-verify/internal/poller"
)

var sixDigits = regexp.MustCompile(`^\d{6}$`)

func main() {
	serverURL := flag.String("server", "http://localhost:3000", "verification server base URL")
	email := flag.String("email", "", "mailbox address (empty: use the server's default identity)")
	password := flag.String("password", "", "mailbox password (empty: use the server's default identity)")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	client := poller.NewClient(*serverURL)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *email == "" {
		defaultEmail, ok, err := client.HasDefaultCredentials(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: server unreachable: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "error: no credentials given and the server has no default identity")
			os.Exit(1)
		}
		fmt.Printf("Using server default identity %s\n", defaultEmail)
	}

	sessionID, err := client.Connect(ctx, *email, *password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("connected", "session", sessionID)

	p := poller.New(client, sessionID, poller.Options{
		OnCode:         displayCode,
		OnStatus:       func(msg string) { fmt.Println(msg) },
		OnManualPrompt: func() { go promptManualCode(ctx) },
	}, logger)

	fmt.Println("Waiting for a verification email...")
	p.Run(ctx)

	// Run returns on signal; tear the session down with a fresh
	// context since ctx is already cancelled.
	logoutCtx, logoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer logoutCancel()
	if err := client.Logout(logoutCtx, sessionID); err != nil {
		logger.Warn("logout failed", "error", err)
	}
	fmt.Println("\nLogged out.")
}

func displayCode(code string, fresh bool) {
	fmt.Printf("\nVerification code: %s\n", code)
	if !fresh {
		return
	}
	if err := clipboard.WriteAll(code); err != nil {
		fmt.Println("(could not copy to clipboard)")
		return
	}
	fmt.Println("New verification code copied to clipboard!")
}

// promptManualCode lets the user type the code from their mail client
// while the automatic polling keeps running.
func promptManualCode(ctx context.Context) {
	fmt.Println("\nStill waiting. You can enter the 6-digit code manually:")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		entry := strings.TrimSpace(scanner.Text())
		if entry == "" {
			continue
		}
		if !sixDigits.MatchString(entry) {
			fmt.Println("Please enter exactly 6 digits.")
			continue
		}
		displayCode(entry, true)
		return
	}
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
