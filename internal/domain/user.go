package domain

// User Model
type User struct {
	ID       uint    `gorm:"primaryKey" json:"id"`              // Primary key
	Username string  `gorm:"unique;not null" json:"username"`   // Unique username
	Password string  `gorm:"not null" json:"-"`                 // Hashed password, never serialized
	Balance  float64 `gorm:"not null;default:0" json:"balance"` // In-app currency balance
}
