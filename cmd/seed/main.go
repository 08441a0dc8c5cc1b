// Command main runs the database seeder for Impostor.
package main

import (
	"flag"
	"log"

	"impostor/internal/config"
	"impostor/internal/database"
	"impostor/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of test users to create")
	shouldClean := flag.Bool("clean", false, "Clean database before seeding")
	flag.Parse()

	log.Println("Database Seeder")
	log.Println("===============")
	log.Printf("Target: %d users, clean=%v\n", *numUsers, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.Seed(db, seed.Options{
		NumUsers:    *numUsers,
		ShouldClean: *shouldClean,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
