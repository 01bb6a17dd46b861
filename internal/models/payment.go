package models

import "time"

// Payment statuses. Providers report their own status strings; these are
// the normalized values the bot acts on.
const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
	PaymentRejected  = "rejected"
)

// Payment is one payment attempt created for a user. A user can have
// several pending payments at once (reopened invoices); the recheck loop
// resolves each by its provider ID.
type Payment struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ProductID string `gorm:"size:64;uniqueIndex"` // provider-side payment ID
	UserID    int64  `gorm:"index"`
	Provider  string `gorm:"size:16"` // tinkoff or yookassa
	Amount    int64  // kopecks
	Product   string `gorm:"size:32"`
	Days      int    // subscription days this payment buys
	Status    string `gorm:"size:16;default:pending;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
