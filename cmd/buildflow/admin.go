package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/GustheTrader/Build-flow/internal/adapter/memkv"
	"github.com/GustheTrader/Build-flow/internal/adapter/postgres"
	"github.com/GustheTrader/Build-flow/internal/config"
	"github.com/GustheTrader/Build-flow/internal/domain/user"
	"github.com/GustheTrader/Build-flow/internal/service"
)

// runCommand dispatches operator subcommands (token, hash-key, migrate).
func runCommand(name string, args []string) error {
	switch name {
	case "token":
		return runToken(args)
	case "hash-key":
		return runHashKey(args)
	case "migrate":
		return runMigrate(args)
	case "help", "--help", "-h":
		printHelp()
		return nil
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", name)
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: buildflow [command] [options]

Commands:
  serve              Run the API server (default)
  token              Issue a signed access token
  hash-key [key]     Print the bcrypt hash of an API key
  migrate <cmd>      Run database migrations (up, down, version)
  help               Show this help message

Examples:
  buildflow token --sub alice --role reviewer --ttl 8h
  buildflow hash-key
  buildflow migrate up
`)
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	sub := fs.String("sub", "", "token subject (required)")
	role := fs.String("role", string(user.RoleViewer), "role: admin, manager, reviewer or viewer")
	ttl := fs.Duration("ttl", 0, "token lifetime (default: auth.token_ttl)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sub == "" {
		return fmt.Errorf("--sub is required")
	}
	r, err := user.ParseRole(*role)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.Auth.TokenTTL
	}

	// Issuing only signs claims; revocation state is not touched.
	authSvc := service.NewAuthService(memkv.New(), cfg.Auth)
	token, err := authSvc.IssueToken(*sub, r, lifetime)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", time.Now().Add(lifetime).UTC().Format(time.RFC3339))
	return nil
}

func runHashKey(args []string) error {
	var key string
	if len(args) > 0 {
		key = args[0]
	} else {
		var err error
		key, err = promptSecret("API key: ")
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
	}
	h, err := service.HashAPIKey(key)
	if err != nil {
		return err
	}
	fmt.Println(h)
	return nil
}

func runMigrate(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: buildflow migrate up|down [steps]|version")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()
	dsn := cfg.Postgres.DSN

	switch args[0] {
	case "up":
		if err := postgres.RunMigrations(ctx, dsn); err != nil {
			return err
		}
	case "down":
		fs := flag.NewFlagSet("down", flag.ContinueOnError)
		steps := fs.Int("steps", 1, "number of migrations to roll back")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if err := postgres.RollbackMigrations(ctx, dsn, *steps); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown migrate command: %s", args[0])
	}

	v, err := postgres.MigrationVersion(ctx, dsn)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "schema version %d\n", v)
	return nil
}

func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
