package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"todo_app/internal/config"
	"todo_app/internal/db"

	"github.com/sirupsen/logrus"
)

const (
	directionUp   = "up"
	directionDown = "down"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	direction, err := parseArgs(os.Args[1:])
	if err != nil {
		logrus.WithError(err).Fatal("Invalid arguments")
	}

	dbCfg := config.LoadDB()
	database := db.Init(&dbCfg)
	defer func() {
		if err := database.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close database connection")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, database, direction); err != nil {
		logrus.WithError(err).Fatalf("Migration %s failed", direction)
	}
	logrus.Infof("Migration %s finished", direction)
}

// parseArgs reads the direction from -direction or the first positional
// argument. Without either, pending migrations are applied.
func parseArgs(args []string) (string, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	direction := fs.String("direction", directionUp, "up applies pending migrations, down rolls back the latest")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() > 1 {
		return "", errors.New("expected at most one argument")
	}
	if fs.NArg() == 1 {
		*direction = fs.Arg(0)
	}

	switch *direction {
	case directionUp, directionDown:
		return *direction, nil
	default:
		return "", fmt.Errorf("unknown direction %q", *direction)
	}
}

func run(ctx context.Context, database *sql.DB, direction string) error {
	if direction == directionDown {
		return db.RollbackLast(ctx, database)
	}
	return db.Migrate(ctx, database)
}
