package api

import (
	"context"                         // Context for Redis operations
	"errors"                          // Sentinel error checks
	"math/rand"                       // Uniform prize draw
	"net/http"                        // HTTP status codes
	"scratch_lottery/internal/domain" // Importing domain models
	"scratch_lottery/internal/utils"  // Utility functions
	"time"                            // Time for log timestamps

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library

	"github.com/sirupsen/logrus" // Logging library
)

const (
	TicketPrice = 10  // Cost of a single ticket
	TopUpAmount = 100 // Fixed credit per top-up
)

// errInsufficientBalance signals that the conditional debit matched no row
var errInsufficientBalance = errors.New("insufficient balance")

// prizes is the fixed set of outcomes a new ticket can be assigned
var prizes = []string{domain.PrizeWin50, domain.PrizeWin100, domain.PrizeNothing}

// drawPrize picks a prize uniformly at random
func drawPrize() string {
	return prizes[rand.Intn(len(prizes))]
}

// PurchaseTicketHandler debits the ticket price and creates a new unscratched ticket
func PurchaseTicketHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var user domain.User // Fetch user from database
		// The token may outlive the account, so a missing user is an explicit 404
		if err := db.First(&user, userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		// Check sufficient funds before touching anything
		if user.Balance < TicketPrice {
			// If insufficient funds, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient balance"})
			return
		}
		var ticket domain.Ticket // The ticket to be created
		// Atomic purchase: conditional debit and ticket insert commit together
		err := db.Transaction(func(tx *gorm.DB) error {
			// Debit only if the balance still covers the price
			res := tx.Model(&domain.User{}).
				Where("id = ? AND balance >= ?", user.ID, TicketPrice).
				Update("balance", gorm.Expr("balance - ?", TicketPrice))
			if res.Error != nil {
				return res.Error // Return error to rollback
			}
			// A concurrent purchase may have drained the balance first
			if res.RowsAffected == 0 {
				return errInsufficientBalance // Rollback, nothing was debited
			}
			// Create the ticket with a randomly drawn prize
			ticket = domain.Ticket{UserID: user.ID, Prize: drawPrize(), IsScratched: false}
			// Save ticket
			if err := tx.Create(&ticket).Error; err != nil {
				return err // Return error to rollback
			}
			return nil // Commit transaction
		})
		// The conditional debit lost a race against another purchase
		if errors.Is(err, errInsufficientBalance) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient balance"})
			return
		}
		// Handle transaction result
		if err != nil {
			// Log the error with context
			logrus.WithFields(logrus.Fields{
				"user_id": user.ID,     // Buyer user ID
				"error":   err.Error(), // Error message
			}).Error("Ticket purchase failed") // Log purchase failure
			// Return internal server error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ticket purchase failed"})
			return
		}
		// Log successful purchase
		logrus.WithFields(logrus.Fields{
			"user_id":   user.ID,                         // Buyer user ID
			"ticket_id": ticket.ID,                       // New ticket ID
			"prize":     ticket.Prize,                    // Assigned prize
			"type":      "purchase",                      // Transaction type
			"timestamp": time.Now().Format(time.RFC3339), // Current timestamp
		}).Info("Ticket purchased") // Log purchase success
		// Invalidate the cached ticket list for this user
		_ = utils.DeleteCache(context.Background(), rdb, utils.TicketsCacheKey(user.ID))
		// Return the created ticket
		c.JSON(http.StatusOK, ticket)
	}
}

// TopUpHandler credits a fixed amount to the caller's balance
func TopUpHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		// Credit the balance in place
		res := db.Model(&domain.User{}).
			Where("id = ?", userID).
			Update("balance", gorm.Expr("balance + ?", TopUpAmount))
		// Handle update result
		if res.Error != nil {
			// Log the error with context
			logrus.WithFields(logrus.Fields{
				"user_id": userID,            // User ID
				"error":   res.Error.Error(), // Error message
			}).Error("Top-up failed") // Log top-up failure
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Top-up failed"}) // Return internal server error
			return
		}
		// No row matched: the token references a deleted user
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		var user domain.User // Reload to report the new balance
		if err := db.First(&user, userID).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Top-up failed"})
			return
		}
		// Log successful top-up
		logrus.WithFields(logrus.Fields{
			"user_id":   user.ID,                         // User ID
			"amount":    TopUpAmount,                     // Credited amount
			"balance":   user.Balance,                    // New balance
			"type":      "topup",                         // Transaction type
			"timestamp": time.Now().Format(time.RFC3339), // Current timestamp
		}).Info("Balance topped up") // Log top-up success
		// Return the new balance
		c.JSON(http.StatusOK, gin.H{"balance": user.Balance})
	}
}

// MyTicketsHandler returns all tickets owned by the authenticated user
func MyTicketsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx := context.Background()                                // Context for Redis operations
		cacheKey := utils.TicketsCacheKey(userID.(uint))           // Cache key for the ticket list
		var tickets []domain.Ticket                                // Slice to hold tickets
		found, err := utils.GetCache(ctx, rdb, cacheKey, &tickets) // Try to get from cache
		// If found in cache, return it
		if err == nil && found {
			c.JSON(http.StatusOK, tickets) // Return cached ticket list
			return
		}
		// If not in cache, fetch from DB in insertion order
		if err := db.Where("user_id = ?", userID).Order("id asc").Find(&tickets).Error; err != nil {
			// If fetching fails, return error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tickets"})
			return
		}
		// An owner with no tickets gets an empty array, not null
		if tickets == nil {
			tickets = []domain.Ticket{}
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, tickets, utils.CacheTTL) // Cache the ticket list
		c.JSON(http.StatusOK, tickets)                                  // Return the ticket list
	}
}

// ScratchTicketHandler reveals a ticket's outcome for its owner
func ScratchTicketHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ticketID := c.Param("id") // Ticket ID from the path
		var ticket domain.Ticket  // Fetch the ticket scoped to the caller
		// Filtering by owner makes a foreign ticket indistinguishable from a missing one
		if err := db.Where("id = ? AND user_id = ?", ticketID, userID).First(&ticket).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
			return
		}
		// Mark the ticket as scratched; re-scratching simply persists true again
		if err := db.Model(&ticket).Update("is_scratched", true).Error; err != nil {
			// Log the error with context
			logrus.WithFields(logrus.Fields{
				"user_id":   userID,      // Owner user ID
				"ticket_id": ticket.ID,   // Ticket ID
				"error":     err.Error(), // Error message
			}).Error("Scratch failed") // Log scratch failure
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Scratch failed"}) // Return internal server error
			return
		}
		ticket.IsScratched = true // Reflect the update in the response
		// Log the scratch
		logrus.WithFields(logrus.Fields{
			"user_id":   userID,                          // Owner user ID
			"ticket_id": ticket.ID,                       // Ticket ID
			"prize":     ticket.Prize,                    // Revealed prize
			"type":      "scratch",                       // Transaction type
			"timestamp": time.Now().Format(time.RFC3339), // Current timestamp
		}).Info("Ticket scratched") // Log scratch success
		// Invalidate the cached ticket list for this user
		_ = utils.DeleteCache(context.Background(), rdb, utils.TicketsCacheKey(userID.(uint)))
		// Return the updated ticket
		c.JSON(http.StatusOK, ticket)
	}
}
