package models

import "time"

// TaxiOrder is one structured order extracted from a relayed VIP message.
// Extraction is best-effort; any field except RawText may be empty.
type TaxiOrder struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Origin      string `gorm:"size:128"`
	Destination string `gorm:"size:128"`
	DepartAt    string `gorm:"size:64"` // as stated in the message, not normalized
	Seats       int
	Price       string `gorm:"size:64"`
	Phone       string `gorm:"size:32"`
	District    string `gorm:"size:64;index"`
	RawText     string `gorm:"type:text"`

	SourceChannelID int64
	SourceMessageID int

	CreatedAt time.Time
}
