// Package store is the query layer over the application database: users and
// their subscriptions, payment attempts, and extracted taxi orders.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/taxiline/taxiline/internal/models"
	"gorm.io/gorm"
)

// Store wraps the database handle. The zero clock is time.Now; tests inject
// their own.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// RegisterUser creates the user on first contact or refreshes the stored
// username on subsequent ones. Returns true when the user is new.
func (s *Store) RegisterUser(userID int64, userName string) (*models.User, bool, error) {
	var u models.User
	err := s.db.First(&u, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		u = models.User{UserID: userID, UserName: userName}
		if err := s.db.Create(&u).Error; err != nil {
			return nil, false, fmt.Errorf("store: register user %d: %w", userID, err)
		}
		return &u, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: load user %d: %w", userID, err)
	}
	if userName != "" && userName != u.UserName {
		u.UserName = userName
		if err := s.db.Save(&u).Error; err != nil {
			return nil, false, fmt.Errorf("store: update user %d: %w", userID, err)
		}
	}
	return &u, false, nil
}

// User loads one user.
func (s *Store) User(userID int64) (*models.User, error) {
	var u models.User
	if err := s.db.First(&u, "user_id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("store: load user %d: %w", userID, err)
	}
	return &u, nil
}

// GrantTrial gives the user their one-time free trial. Returns false without
// error when the trial was already consumed.
func (s *Store) GrantTrial(userID int64, days int, product string) (bool, error) {
	u, err := s.User(userID)
	if err != nil {
		return false, err
	}
	if u.TrialUsed {
		return false, nil
	}
	until := s.now().AddDate(0, 0, days)
	u.SubscribedUntil = &until
	u.Product = product
	u.TrialUsed = true
	u.Kicked = false
	if err := s.db.Save(u).Error; err != nil {
		return false, fmt.Errorf("store: grant trial to %d: %w", userID, err)
	}
	return true, nil
}

// Extend adds days to the user's subscription. An active subscription
// stacks: the new expiry counts from the current one, not from now.
func (s *Store) Extend(userID int64, days int, product string) (time.Time, error) {
	u, err := s.User(userID)
	if err != nil {
		return time.Time{}, err
	}
	base := s.now()
	if u.ActiveAt(base) {
		base = *u.SubscribedUntil
	}
	until := base.AddDate(0, 0, days)
	u.SubscribedUntil = &until
	u.Product = product
	u.Kicked = false
	if err := s.db.Save(u).Error; err != nil {
		return time.Time{}, fmt.Errorf("store: extend user %d: %w", userID, err)
	}
	return until, nil
}

// ExtendAll pushes every active subscription forward by days. Used to
// compensate subscribers for downtime. Returns how many users were extended.
func (s *Store) ExtendAll(days int) (int64, error) {
	var users []models.User
	now := s.now()
	if err := s.db.Where("subscribed_until > ?", now).Find(&users).Error; err != nil {
		return 0, fmt.Errorf("store: list active users: %w", err)
	}
	for i := range users {
		until := users[i].SubscribedUntil.AddDate(0, 0, days)
		users[i].SubscribedUntil = &until
		if err := s.db.Save(&users[i]).Error; err != nil {
			return 0, fmt.Errorf("store: extend user %d: %w", users[i].UserID, err)
		}
	}
	return int64(len(users)), nil
}

// IsActive reports whether the user currently has paid access. Unknown users
// are inactive, not an error.
func (s *Store) IsActive(userID int64) (bool, error) {
	var u models.User
	err := s.db.First(&u, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: load user %d: %w", userID, err)
	}
	return u.ActiveAt(s.now()), nil
}

// SetDistrict points the user's order notifications at a district; empty
// turns them off.
func (s *Store) SetDistrict(userID int64, district string) error {
	res := s.db.Model(&models.User{}).Where("user_id = ?", userID).Update("district", district)
	if res.Error != nil {
		return fmt.Errorf("store: set district for %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("store: set district: unknown user %d", userID)
	}
	return nil
}

// FindSubscriber returns an active user subscribed to the district's
// notifications. Satisfies the mirror engine's subscriber lookup; lookup
// failures read as "no subscriber".
func (s *Store) FindSubscriber(district string) (int64, bool) {
	if district == "" {
		return 0, false
	}
	var u models.User
	err := s.db.Where("district = ? AND subscribed_until > ?", district, s.now()).
		Order("user_id").First(&u).Error
	if err != nil {
		return 0, false
	}
	return u.UserID, true
}

// CreatePayment records a new payment attempt.
func (s *Store) CreatePayment(p *models.Payment) error {
	if p.Status == "" {
		p.Status = models.PaymentPending
	}
	if err := s.db.Create(p).Error; err != nil {
		return fmt.Errorf("store: create payment %s: %w", p.ProductID, err)
	}
	return nil
}

// Payment loads one payment by its provider ID.
func (s *Store) Payment(productID string) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.First(&p, "product_id = ?", productID).Error; err != nil {
		return nil, fmt.Errorf("store: load payment %s: %w", productID, err)
	}
	return &p, nil
}

// PendingPayments lists the user's unresolved payment attempts, oldest first.
func (s *Store) PendingPayments(userID int64) ([]models.Payment, error) {
	var out []models.Payment
	err := s.db.Where("user_id = ? AND status = ?", userID, models.PaymentPending).
		Order("id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: pending payments for %d: %w", userID, err)
	}
	return out, nil
}

// ResolvePayment moves a pending payment to its final status and returns the
// updated row. The conditional update is the settlement lock: of two racing
// callers only one gets claimed = true, and only that caller may credit the
// subscription.
func (s *Store) ResolvePayment(productID, status string) (*models.Payment, bool, error) {
	res := s.db.Model(&models.Payment{}).
		Where("product_id = ? AND status = ?", productID, models.PaymentPending).
		Update("status", status)
	if res.Error != nil {
		return nil, false, fmt.Errorf("store: resolve payment %s: %w", productID, res.Error)
	}
	var p models.Payment
	if err := s.db.First(&p, "product_id = ?", productID).Error; err != nil {
		return nil, false, fmt.Errorf("store: load payment %s: %w", productID, err)
	}
	return &p, res.RowsAffected == 1, nil
}

// ExpiringInDays lists users whose subscription ends on the calendar day
// exactly n days from now. Used by the renewal reminder job.
func (s *Store) ExpiringInDays(n int) ([]models.User, error) {
	day := s.now().AddDate(0, 0, n)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var out []models.User
	err := s.db.Where("subscribed_until >= ? AND subscribed_until < ?", start, end).
		Order("user_id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: expiring in %d days: %w", n, err)
	}
	return out, nil
}

// ExpiredBeyondGrace lists users whose subscription lapsed more than grace
// ago and who have not been kicked from the group yet.
func (s *Store) ExpiredBeyondGrace(grace time.Duration) ([]models.User, error) {
	cutoff := s.now().Add(-grace)
	var out []models.User
	err := s.db.Where("subscribed_until IS NOT NULL AND subscribed_until < ? AND kicked = ?", cutoff, false).
		Order("user_id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: expired beyond grace: %w", err)
	}
	return out, nil
}

// MarkKicked flags the user as removed from the group.
func (s *Store) MarkKicked(userID int64) error {
	if err := s.db.Model(&models.User{}).Where("user_id = ?", userID).Update("kicked", true).Error; err != nil {
		return fmt.Errorf("store: mark kicked %d: %w", userID, err)
	}
	return nil
}

// SaveOrder persists one extracted taxi order.
func (s *Store) SaveOrder(o *models.TaxiOrder) error {
	if err := s.db.Create(o).Error; err != nil {
		return fmt.Errorf("store: save order: %w", err)
	}
	return nil
}

// RecentOrders lists the latest extracted orders, newest first.
func (s *Store) RecentOrders(limit int) ([]models.TaxiOrder, error) {
	var out []models.TaxiOrder
	if err := s.db.Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: recent orders: %w", err)
	}
	return out, nil
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalUsers      int64
	ActiveUsers     int64
	PendingPayments int64
	Orders          int64
}

// Counts computes the dashboard summary.
func (s *Store) Counts() (Stats, error) {
	var st Stats
	if err := s.db.Model(&models.User{}).Count(&st.TotalUsers).Error; err != nil {
		return st, fmt.Errorf("store: count users: %w", err)
	}
	if err := s.db.Model(&models.User{}).Where("subscribed_until > ?", s.now()).Count(&st.ActiveUsers).Error; err != nil {
		return st, fmt.Errorf("store: count active users: %w", err)
	}
	if err := s.db.Model(&models.Payment{}).Where("status = ?", models.PaymentPending).Count(&st.PendingPayments).Error; err != nil {
		return st, fmt.Errorf("store: count pending payments: %w", err)
	}
	if err := s.db.Model(&models.TaxiOrder{}).Count(&st.Orders).Error; err != nil {
		return st, fmt.Errorf("store: count orders: %w", err)
	}
	return st, nil
}

// Users lists all users, newest first. Used by the admin panel.
func (s *Store) Users() ([]models.User, error) {
	var out []models.User
	if err := s.db.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	return out, nil
}
