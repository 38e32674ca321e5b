// Package repository persists users and specimens. Every store backend
// (SQLite, MongoDB) implements the same interfaces.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/isdelr/rockhound-be/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique field is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// UserRepository stores user accounts.
type UserRepository interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	AddXP(ctx context.Context, id string, delta int) (models.User, error)
	Count(ctx context.Context) (int64, error)
	CountByRole(ctx context.Context, role string) (int64, error)
}

// RockRepository stores specimens and answers the aggregate queries used by
// profiles and the admin dashboard.
type RockRepository interface {
	Create(ctx context.Context, rock models.Rock) (models.Rock, error)
	GetByID(ctx context.Context, id string) (models.Rock, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Rock, error)
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context, userID string) (models.CollectionSummary, error)
	Count(ctx context.Context) (int64, error)
	DailyCounts(ctx context.Context, since time.Time) ([]models.DailyCount, error)
	RarityDistribution(ctx context.Context) ([]models.LabelCount, error)
	TopNames(ctx context.Context, limit int) ([]models.LabelCount, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Users UserRepository
	Rocks RockRepository
}

// DayKey formats t as the UTC calendar day used for daily buckets.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
