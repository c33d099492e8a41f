package transitopscli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os/signal"
	"syscall"

	"github.com/phillip-england/transitops/internal/console"
	"github.com/phillip-england/transitops/internal/envutil"
	"github.com/phillip-england/transitops/internal/logger"
	"go.uber.org/zap"
)

var ErrUsage = errors.New("usage")

func Execute(args []string) error {
	if len(args) < 1 {
		return usageError()
	}

	switch args[0] {
	case "setup":
		return runSetup(args[1:])
	case "run":
		return runConsole(args[1:])
	default:
		return usageError()
	}
}

func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: transitops setup [--api-base-url http://localhost:8000] [--addr :3000] [--env-file .env] [--force]")
	fmt.Fprintln(w, "       transitops run [--env-file .env]")
}

func usageError() error {
	return fmt.Errorf("%w: transitops <setup|run> [...]", ErrUsage)
}

func runSetup(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	apiBaseURL := fs.String("api-base-url", "http://localhost:8000", "ride backend base URL")
	addr := fs.String("addr", ":3000", "console listen address")
	envPath := fs.String("env-file", ".env", "path to .env file")
	force := fs.Bool("force", false, "overwrite existing env file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := checkBaseURL(*apiBaseURL); err != nil {
		return err
	}
	key, err := newCSRFKey()
	if err != nil {
		return err
	}

	values := map[string]string{
		"CLIENT_ADDR":    *addr,
		"API_BASE_URL":   *apiBaseURL,
		"API_TIMEOUT":    "8s",
		"CSRF_KEY":       key,
		"SECURE_COOKIES": "false",
		"APP_ENV":        "development",
		"DOWNLOAD_TTL":   "60s",
		"REDIS_ADDR":     "",
	}

	if err := envutil.WriteDotEnv(*envPath, values, *force); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", *envPath)
	return nil
}

func checkBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("--api-base-url must be an absolute http(s) URL, got %q", raw)
	}
	return nil
}

func newCSRFKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate csrf key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

func runConsole(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	envPath := fs.String("env-file", ".env", "path to .env file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := envutil.LoadDotEnv(*envPath); err != nil {
		return fmt.Errorf("load %s: %w", *envPath, err)
	}
	cfg := console.DefaultConfigFromEnv()
	if err := logger.Init(cfg.Environment); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := console.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("console stopped", zap.Error(err))
		return err
	}
	return nil
}
