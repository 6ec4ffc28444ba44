package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"friendfinder/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}

	storageSvc := storage.NewStorageService(db, rdb)

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands: suspend <user_id> [hours], unsuspend <user_id>, reports <user_id>")
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "suspend":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin suspend <user_id> [duration_in_hours]")
			os.Exit(1)
		}
		userID := os.Args[2]
		hours := 24
		if len(os.Args) > 3 {
			hours, err = strconv.Atoi(os.Args[3])
			if err != nil {
				fmt.Println("Invalid duration. Please provide an integer.")
				os.Exit(1)
			}
		}
		if err := storageSvc.SuspendUser(userID, time.Duration(hours)*time.Hour); err != nil {
			log.Fatalf("Error suspending user: %v", err)
		}
		fmt.Printf("User %s has been suspended from matchmaking for %dh.\n", userID, hours)

	case "unsuspend":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin unsuspend <user_id>")
			os.Exit(1)
		}
		userID := os.Args[2]
		if err := storageSvc.UnsuspendUser(userID); err != nil {
			log.Fatalf("Error unsuspending user: %v", err)
		}
		fmt.Printf("User %s has been unsuspended.\n", userID)

	case "reports":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin reports <user_id>")
			os.Exit(1)
		}
		userID := os.Args[2]
		reports, err := storageSvc.GetReportsAgainst(userID)
		if err != nil {
			log.Fatalf("Error listing reports: %v", err)
		}
		if len(reports) == 0 {
			fmt.Printf("No reports against user %s.\n", userID)
			return
		}
		for _, r := range reports {
			fmt.Printf("%s  session=%s  reason=%-22s  status=%-9s  %s\n",
				r.CreatedAt.Format(time.RFC3339), r.SessionID, r.Reason, r.Status, r.Description)
		}

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}
