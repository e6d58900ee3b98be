// Command migrate applies or rolls back the embedded schema migrations.
package main

import (
	"log"
	"os"

	"github.com/ignite/formbridge/internal/config"
	"github.com/ignite/formbridge/internal/database"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		cfg, err := config.LoadFromEnv("config/config.yaml")
		if err != nil {
			log.Fatal("DATABASE_URL is required (or a readable config/config.yaml)")
		}
		dsn = cfg.Database.URL
	}
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := database.Open(config.DatabaseConfig{URL: dsn, MaxOpenConns: 2, MaxIdleConns: 1})
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	action := "up"
	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	switch action {
	case "up":
		if err := database.Migrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Println("migrations applied")
	case "down":
		if err := database.Rollback(db); err != nil {
			log.Fatalf("rollback: %v", err)
		}
		log.Println("rolled back one migration")
	default:
		log.Fatalf("unknown action %q (want up or down)", action)
	}
}
