package main

import (
	"context"                             // context package is needed for Redis operations
	"log"                                 // log package is needed for logging
	"scratch_lottery/internal/api"        // Custom package for API handlers
	"scratch_lottery/internal/config"     // Custom package for configuration
	"scratch_lottery/internal/middleware" // Custom package for middleware

	"github.com/gin-contrib/cors"  // CORS middleware for Gin
	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/driver/mysql"         // MySQL driver for GORM
	"gorm.io/gorm"                 // GORM ORM library
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Setup Data Source Name (DSN) and connect to the database
	dsn := cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	// The game is served to browsers, so allow cross-origin requests
	r.Use(cors.Default())

	// All routes live under /api
	apiGroup := r.Group("/api")

	// Auth routes
	apiGroup.POST("/register", api.RegisterHandler(db))          // Registration endpoint
	apiGroup.POST("/login", api.LoginHandler(db, cfg.JWTSecret)) // Login endpoint

	// Game routes (protected by JWT)
	gameGroup := apiGroup.Group("")
	// Protect game routes with JWT middleware
	gameGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	gameGroup.POST("/ticket", api.PurchaseTicketHandler(db, redisClient))     // Ticket purchase endpoint
	gameGroup.POST("/topup", api.TopUpHandler(db))                            // Balance top-up endpoint
	gameGroup.GET("/mytickets", api.MyTicketsHandler(db, redisClient))        // Ticket list endpoint
	gameGroup.POST("/scratch/:id", api.ScratchTicketHandler(db, redisClient)) // Scratch endpoint

	log.Println("Server running on " + cfg.AppPort) // Log server start
	r.Run(":" + cfg.AppPort)                        // Start the server on port cfg.AppPort
}
