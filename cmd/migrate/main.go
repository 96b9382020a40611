package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/wolfman30/staffline/cmd/mainconfig"
	appmigrations "github.com/wolfman30/staffline/migrations"
)

type command struct {
	name string
	n    int
}

// parseCommand reads `migrate [up|down [n]|force <version>|version]`.
func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{name: "up"}, nil
	}
	switch args[0] {
	case "up", "version":
		return command{name: args[0]}, nil
	case "down":
		steps := 1
		if len(args) > 1 {
			v, err := strconv.Atoi(args[1])
			if err != nil || v < 1 {
				return command{}, fmt.Errorf("invalid step count %q", args[1])
			}
			steps = v
		}
		return command{name: "down", n: steps}, nil
	case "force":
		if len(args) < 2 {
			return command{}, errors.New("force requires a version")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return command{}, fmt.Errorf("invalid version: %w", err)
		}
		return command{name: "force", n: v}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q", args[0])
	}
}

func main() {
	if err := mainconfig.LoadDotEnv(); err != nil {
		log.Printf("failed to read .env: %v", err)
	}
	cmd, err := parseCommand(os.Args[1:])
	if err != nil {
		log.Fatalf("usage: migrate [up|down [n]|force <version>|version]: %v", err)
	}

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.Ping(); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	m, err := newMigrator(db)
	if err != nil {
		log.Fatalf("create migrator: %v", err)
	}
	defer func() { _, _ = m.Close() }()

	msg, err := run(m, cmd)
	if err != nil {
		log.Fatalf("migrate %s: %v", cmd.name, err)
	}
	fmt.Println(msg)
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("db driver: %w", err)
	}
	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("source driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
}

func run(m *migrate.Migrate, cmd command) (string, error) {
	switch cmd.name {
	case "down":
		if err := m.Steps(-cmd.n); err != nil {
			return "", err
		}
		return fmt.Sprintf("rolled back %d migration(s)", cmd.n), nil
	case "force":
		if err := m.Force(cmd.n); err != nil {
			return "", err
		}
		return fmt.Sprintf("forced version to %d", cmd.n), nil
	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return "no migrations applied", nil
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("version %d (dirty=%t)", v, dirty), nil
	default:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return "", err
		}
		return "migrations complete", nil
	}
}
