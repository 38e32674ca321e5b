package gamification

import "github.com/isdelr/rockhound-be/internal/models"

type rule struct {
	id, title, description string
	unlocked               func(models.CollectionSummary) bool
}

var rules = []rule{
	{"first-find", "First Find", "Log your first specimen.",
		func(s models.CollectionSummary) bool { return s.Count >= 1 }},
	{"collector", "Collector", "Log 10 specimens.",
		func(s models.CollectionSummary) bool { return s.Count >= 10 }},
	{"curator", "Curator", "Log 50 specimens.",
		func(s models.CollectionSummary) bool { return s.Count >= 50 }},
	{"geologist", "Geologist", "Collect 3 different rock types.",
		func(s models.CollectionSummary) bool { return s.DistinctTypes >= 3 }},
	{"rare-hunter", "Rare Hunter", "Find a specimen of Rare tier or better.",
		func(s models.CollectionSummary) bool { return s.MaxRarityScore >= TierMinScore(TierRare) }},
	{"legend", "Living Legend", "Find a Legendary specimen.",
		func(s models.CollectionSummary) bool { return s.MaxRarityScore >= TierMinScore(TierLegendary) }},
	{"alchemist", "Alchemist", "Fuse two specimens in the lab.",
		func(s models.CollectionSummary) bool { return s.LabFusions >= 1 }},
}

// EvaluateAchievements returns every achievement with its unlocked state, in a
// stable order.
func EvaluateAchievements(summary models.CollectionSummary) []models.Achievement {
	out := make([]models.Achievement, 0, len(rules))
	for _, r := range rules {
		out = append(out, models.Achievement{
			ID:          r.id,
			Title:       r.title,
			Description: r.description,
			Unlocked:    r.unlocked(summary),
		})
	}
	return out
}
