package models

import "time"

// Specimen origins.
const (
	OriginScan = "scan"
	OriginLab  = "lab"
)

// Rock is a user-submitted specimen with AI-derived metadata.
type Rock struct {
	ID          string    `json:"id" bson:"_id"`
	UserID      string    `json:"userId" bson:"userId"`
	Name        string    `json:"name" bson:"name"`
	Type        string    `json:"type" bson:"type"`
	Description string    `json:"description,omitempty" bson:"description"`
	Rarity      string    `json:"rarity" bson:"rarity"`
	RarityScore int       `json:"rarityScore" bson:"rarityScore"`
	Composition []string  `json:"composition" bson:"composition"`
	Hardness    float64   `json:"hardness" bson:"hardness"`
	Confidence  float64   `json:"confidence" bson:"confidence"`
	ImageURL    string    `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	Origin      string    `json:"origin" bson:"origin"`
	XPAwarded   int       `json:"xpAwarded" bson:"xpAwarded"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// CollectionSummary aggregates a user's collection for achievement checks.
type CollectionSummary struct {
	Count          int
	DistinctTypes  int
	MaxRarityScore int
	LabFusions     int
}

// Identification is the classification returned by the AI service for a photo.
// It is not persisted; clients submit it back as a Rock.
type Identification struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	RarityScore int      `json:"rarityScore"`
	Rarity      string   `json:"rarity"`
	Composition []string `json:"composition"`
	Hardness    float64  `json:"hardness"`
	Confidence  float64  `json:"confidence"`
	FunFact     string   `json:"funFact,omitempty"`
}

// Bounty is the daily suggested target mineral. Cosmetic only.
type Bounty struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Mineral string `json:"mineral"`
	Hint    string `json:"hint"`
	Source  string `json:"source"` // "ai" or "fallback"
}
