package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"friendfinder/backend/internal/api/handler"
	"friendfinder/backend/internal/chathub"
	"friendfinder/backend/internal/models"
	"friendfinder/backend/internal/storage"
	"friendfinder/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setupDependencies() (*gorm.DB, *redis.Client) {
	// 1. PostgreSQL
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		envOr("DB_HOST", "localhost"),
		envOr("DB_USER", "user"),
		envOr("DB_PASSWORD", "password"),
		envOr("DB_NAME", "friendfinderdb"),
		envOr("DB_PORT", "5432"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	// 2. Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     envOr("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	// Перевірка з'єднання Redis
	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	// 3. Міграції
	err = db.AutoMigrate(
		&models.RandomChatSession{},
		&models.SessionMessage{},
		&models.Report{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting FriendFinder random-chat backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	// 1. Ініціалізація залежностей
	db, rdb := setupDependencies()
	s := storage.NewStorageService(db, rdb)

	// 2. Ініціалізація Chat Hub
	hub := chathub.NewManagerService(s)

	// 3. Нотифікації модераторам (опційно)
	if botToken := os.Getenv("TELEGRAM_BOT_TOKEN"); botToken != "" {
		chatID, err := strconv.ParseInt(os.Getenv("TELEGRAM_MODERATOR_CHAT_ID"), 10, 64)
		if err != nil {
			log.Fatalf("TELEGRAM_MODERATOR_CHAT_ID must be set with the bot token")
		}
		notifier, err := telegram.NewNotifier(botToken, chatID)
		if err != nil {
			log.Fatalf("Failed to start Telegram notifier: %v", err)
		}
		hub.Sessions.SetNotifier(notifier)
	}

	// 4. Запуск головного диспетчера
	go hub.Run()

	// 5. Налаштування Gin та роутингу
	r := gin.Default()
	h := handler.NewHandler(hub)
	h.RegisterRoutes(r)

	// Запуск HTTP-сервера
	server := &http.Server{
		Addr:           ":" + envOr("PORT", "8080"),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
