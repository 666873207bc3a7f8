package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Skotchmaster/auth_center/internal/config"
	"github.com/Skotchmaster/auth_center/internal/db"
)

func main() {
	var (
		command = flag.String("command", "up", "migration command: up, down, version, force")
		steps   = flag.Int("steps", 0, "number of steps for up/down, 0 means all")
		version = flag.Int("version", -1, "target version for force")
		dir     = flag.String("dir", "./migrations", "migrations directory")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DBDriver != "postgres" {
		log.Fatalf("migrations only run against postgres, DB_DRIVER is %q", cfg.DBDriver)
	}

	mg, err := db.NewMigrator(*dir, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("migrator: %v", err)
	}
	defer mg.Close()

	switch *command {
	case "up":
		if err := mg.Up(*steps); err != nil {
			log.Fatalf("migrate up: %v", err)
		}
		fmt.Println("migrations applied")
	case "down":
		if err := mg.Down(*steps); err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		fmt.Println("migrations rolled back")
	case "version":
		v, dirty, err := mg.Version()
		if err != nil {
			log.Fatalf("migrate version: %v", err)
		}
		fmt.Printf("version %d dirty=%t\n", v, dirty)
		if dirty {
			mg.Close()
			os.Exit(1)
		}
	case "force":
		if *version < 0 {
			log.Fatal("force needs -version")
		}
		if err := mg.Force(*version); err != nil {
			log.Fatalf("migrate force: %v", err)
		}
		fmt.Printf("forced version %d\n", *version)
	default:
		log.Fatalf("unknown command %q (up, down, version, force)", *command)
	}
}
