package main

import (
	"flag"
	"log"

	"research-chat-be/internal/config"
	"research-chat-be/pkg/database"

	"github.com/google/uuid"
)

func main() {
	userFlag := flag.String("user", "", "user id that owns the seeded catalog (skips catalog when empty)")
	flag.Parse()

	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Seeding presets...")
	SeedPresets(db)

	if *userFlag == "" {
		log.Println("No -user given, catalog seeding skipped.")
		return
	}
	userId, err := uuid.Parse(*userFlag)
	if err != nil {
		log.Fatalf("Error: invalid -user: %v", err)
	}

	log.Println("Seeding catalog...")
	SeedCatalog(db, userId)

	log.Println("Seeding completed!")
}
