package models

import "time"

// Roles a user can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a user account in the system.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"passwordHash"` // Never expose this to the client
	Role         string    `json:"role" bson:"role"`
	XP           int       `json:"xp" bson:"xp"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Profile is the authenticated user's view of their own progress.
type Profile struct {
	User          User          `json:"user"`
	Level         int           `json:"level"`
	XPIntoLevel   int           `json:"xpIntoLevel"`
	XPForNext     int           `json:"xpForNextLevel"`
	SpecimenCount int           `json:"specimenCount"`
	Achievements  []Achievement `json:"achievements"`
}

// Achievement is a collection milestone.
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Unlocked    bool   `json:"unlocked"`
}
