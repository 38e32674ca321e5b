// Package gamification holds the XP, level, rarity and achievement rules.
package gamification

import "github.com/isdelr/rockhound-be/internal/models"

const (
	// XPPerLevel is the flat amount of XP each level costs.
	XPPerLevel = 100

	// BaseSpecimenXP is awarded for any logged specimen on top of its rarity score.
	BaseSpecimenXP = 10

	MinRarityScore = 1
	MaxRarityScore = 100

	// FusionRarityBonus is added to the rarer parent when two specimens are fused.
	FusionRarityBonus = 10
)

// Rarity tiers, ordered from most to least common.
const (
	TierCommon    = "Common"
	TierUncommon  = "Uncommon"
	TierRare      = "Rare"
	TierEpic      = "Epic"
	TierLegendary = "Legendary"
)

var tiers = []struct {
	name     string
	minScore int
}{
	{TierLegendary, 95},
	{TierEpic, 85},
	{TierRare, 65},
	{TierUncommon, 40},
	{TierCommon, MinRarityScore},
}

// ClampRarity bounds a rarity score to the accepted range.
func ClampRarity(score int) int {
	if score < MinRarityScore {
		return MinRarityScore
	}
	if score > MaxRarityScore {
		return MaxRarityScore
	}
	return score
}

// RarityTier maps a rarity score to its tier name.
func RarityTier(score int) string {
	score = ClampRarity(score)
	for _, t := range tiers {
		if score >= t.minScore {
			return t.name
		}
	}
	return TierCommon
}

// TierMinScore returns the lowest score that falls into the named tier, or
// 0 for an unknown tier.
func TierMinScore(tier string) int {
	for _, t := range tiers {
		if t.name == tier {
			return t.minScore
		}
	}
	return 0
}

// XPForRarity returns the XP awarded for logging a specimen of the given rarity.
// It never decreases as the score grows.
func XPForRarity(score int) int {
	return BaseSpecimenXP + ClampRarity(score)
}

// LevelForXP is floor(xp/100)+1.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// Progress returns the level for xp along with how far into it the user is
// and how much XP is left until the next one.
func Progress(xp int) (level, into, remaining int) {
	if xp < 0 {
		xp = 0
	}
	level = LevelForXP(xp)
	into = xp % XPPerLevel
	return level, into, XPPerLevel - into
}

// FusionRarity computes the rarity score of a lab fusion.
func FusionRarity(a, b int) int {
	return ClampRarity(max(a, b) + FusionRarityBonus)
}

// ApplyProfile fills the level fields of a profile from the user's XP.
func ApplyProfile(p *models.Profile) {
	p.Level, p.XPIntoLevel, p.XPForNext = Progress(p.User.XP)
}
