package models

import "time"

// User is one Telegram user known to the subscription bot.
type User struct {
	UserID   int64  `gorm:"primaryKey"`
	UserName string `gorm:"size:128"`

	// SubscribedUntil is the paid-access expiry. Nil means the user never
	// had a subscription.
	SubscribedUntil *time.Time

	// Product is the name of the last purchased (or trial) tariff.
	Product string `gorm:"size:32"`

	// District is the district key the user receives order notifications
	// for; empty means notifications are off.
	District string `gorm:"size:64;index"`

	// TrialUsed guards the one-time free trial.
	TrialUsed bool `gorm:"default:false"`

	// Kicked marks users already removed from the group after expiry, so
	// the sweep doesn't kick them twice.
	Kicked bool `gorm:"default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Payments []Payment `gorm:"foreignKey:UserID"`
}

// ActiveAt reports whether the subscription covers the given instant.
func (u *User) ActiveAt(now time.Time) bool {
	return u.SubscribedUntil != nil && u.SubscribedUntil.After(now)
}
