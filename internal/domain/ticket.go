package domain

// Prize outcomes a ticket can carry
const (
	PrizeWin50   = "WIN $50"   // Small win
	PrizeWin100  = "WIN $100"  // Big win
	PrizeNothing = "TRY AGAIN" // No win
)

// Ticket Model
type Ticket struct {
	ID          uint   `gorm:"primaryKey" json:"id"`                      // Primary key
	UserID      uint   `gorm:"index;not null" json:"userId"`              // Foreign key to the owning User
	Prize       string `gorm:"not null" json:"prize"`                     // Prize outcome assigned at purchase
	IsScratched bool   `gorm:"not null;default:false" json:"isScratched"` // Whether the ticket has been revealed
	CreatedAt   int64  `gorm:"autoCreateTime:milli" json:"createdAt"`     // Timestamp of creation in milliseconds
}
