package userstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/device"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrEmailTaken is returned by CreateUser when the email is already registered.
var ErrEmailTaken = fmt.Errorf("email already registered: %w", sessionguard.ErrConflict)

type userRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;size:320;not null"`
	Name         string `gorm:"size:200"`
	PasswordHash string `gorm:"not null"`
	IsActive     bool   `gorm:"not null;default:true"`
	LastLogin    *time.Time
	Devices      []device.Device `gorm:"serializer:json"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

// Store persists users through gorm.
type Store struct {
	db *gorm.DB
}

var _ sessionguard.UserStore = (*Store)(nil)

// Open connects to driver ("sqlite" or "postgres") at dsn. Query logging is
// silenced unless debug is set.
func Open(driver, dsn string, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("userstore: unsupported driver %q", driver)
	}

	level := logger.Silent
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, fmt.Errorf("userstore: open %s: %w", driver, err)
	}
	return db, nil
}

// New wraps db. Call Migrate before first use on a fresh database.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the users table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&userRow{}); err != nil {
		return fmt.Errorf("userstore: migrate: %w", err)
	}
	return nil
}

// CreateUser registers a new active user with an already hashed password.
func (s *Store) CreateUser(ctx context.Context, email, name, passwordHash string) (*sessionguard.User, error) {
	email = normalizeEmail(email)
	if email == "" || passwordHash == "" {
		return nil, fmt.Errorf("userstore: email and password hash are required: %w", sessionguard.ErrValidation)
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&userRow{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("userstore: create user: %w", err)
	}
	if existing > 0 {
		return nil, ErrEmailTaken
	}

	row := userRow{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("userstore: create user: %w", err)
	}
	return row.toUser(), nil
}

// GetUserByEmail returns an error matching sessionguard.ErrUserNotFound for an
// unknown email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*sessionguard.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&row).Error
	if err != nil {
		return nil, lookupError(err)
	}
	return row.toUser(), nil
}

// GetUserByID returns an error matching sessionguard.ErrUserNotFound for an
// unknown id.
func (s *Store) GetUserByID(ctx context.Context, id string) (*sessionguard.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		return nil, lookupError(err)
	}
	return row.toUser(), nil
}

// SaveUser writes every mutable column of user. The user must exist.
func (s *Store) SaveUser(ctx context.Context, user *sessionguard.User) error {
	if user == nil || user.ID == "" {
		return fmt.Errorf("userstore: save requires a user id: %w", sessionguard.ErrValidation)
	}

	row := fromUser(user)
	res := s.db.WithContext(ctx).
		Model(&userRow{}).
		Where("id = ?", row.ID).
		Select("Email", "Name", "PasswordHash", "IsActive", "LastLogin", "Devices", "UpdatedAt").
		Updates(&row)
	if res.Error != nil {
		return fmt.Errorf("userstore: save user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return sessionguard.ErrUserNotFound
	}
	return nil
}

// SetActive flips the account flag. Inactive users cannot log in or refresh.
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	res := s.db.WithContext(ctx).
		Model(&userRow{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": active, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("userstore: set active: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return sessionguard.ErrUserNotFound
	}
	return nil
}

// Ping checks the underlying connection pool.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sessionguard.ErrUserNotFound
	}
	return fmt.Errorf("userstore: lookup: %w", err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *userRow) toUser() *sessionguard.User {
	u := &sessionguard.User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.PasswordHash,
		IsActive:     r.IsActive,
		Devices:      r.Devices,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.LastLogin != nil {
		u.LastLogin = *r.LastLogin
	}
	return u
}

func fromUser(u *sessionguard.User) userRow {
	row := userRow{
		ID:           u.ID,
		Email:        normalizeEmail(u.Email),
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
		Devices:      u.Devices,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if row.Devices == nil {
		row.Devices = []device.Device{}
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now()
	}
	if !u.LastLogin.IsZero() {
		last := u.LastLogin
		row.LastLogin = &last
	}
	return row
}
