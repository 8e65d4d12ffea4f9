package main

import (
	"database/sql"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"
)

type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
}

func main() {
	dir := flag.String("dir", "./db/migration", "Directory holding goose migrations")
	command := flag.String("command", "up", "Goose command: up, down, status, reset")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process config: %v", err)
	}

	if _, err := os.Stat(*dir); os.IsNotExist(err) {
		log.Fatalf("Migrations directory not found: %s", *dir)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("Failed to set goose dialect: %v", err)
	}

	log.Printf("Running goose %s on %s", *command, *dir)
	switch *command {
	case "up":
		err = goose.Up(db, *dir)
	case "down":
		err = goose.Down(db, *dir)
	case "status":
		err = goose.Status(db, *dir)
	case "reset":
		err = goose.Reset(db, *dir)
	default:
		log.Fatalf("Unknown command %q", *command)
	}
	if err != nil {
		log.Fatalf("Migration %s failed: %v", *command, err)
	}
	log.Println("Migrations completed successfully!")
}
