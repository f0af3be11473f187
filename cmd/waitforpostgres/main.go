// Command waitforpostgres blocks until Postgres accepts connections and can
// optionally apply the schema migrations, for use before integration tests
// and container start.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"steamtracker/steam-api/internal/migrations"
)

func main() {
	timeout := flag.Duration("timeout", 60*time.Second, "how long to wait for postgres")
	migrate := flag.Bool("migrate", false, "apply schema migrations once postgres is up")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = os.Getenv("TEST_POSTGRES_DSN")
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL or TEST_POSTGRES_DSN is required")
		os.Exit(2)
	}
	if *timeout <= 0 {
		fmt.Fprintf(os.Stderr, "invalid -timeout: %s\n", *timeout)
		os.Exit(2)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open postgres: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := waitForPing(db, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("postgres ready")

	if !*migrate {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	version, err := migrations.Up(ctx, db, migrations.Postgres)
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("schema at version %d\n", version)
}

func waitForPing(db *sql.DB, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := db.PingContext(ctx)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("postgres not ready within %s: %w", timeout, err)
		}
		time.Sleep(2 * time.Second)
	}
}
