package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/isdelr/rockhound-be/internal/ai"
	"github.com/isdelr/rockhound-be/internal/gamification"
	"github.com/isdelr/rockhound-be/internal/models"
	"github.com/rs/zerolog/log"
)

// FusionWriter generates the creative parts of a lab specimen.
type FusionWriter interface {
	DescribeFusion(ctx context.Context, a, b models.Rock, composition []string) (ai.FusionText, error)
	Illustrate(ctx context.Context, prompt string) ([]byte, string, error)
}

// LabServiceProvider defines the interface for the fusion lab.
type LabServiceProvider interface {
	Fuse(ctx context.Context, userID, rockA, rockB string) (SpecimenResult, error)
}

// LabService combines two owned specimens into a new synthetic one.
type LabService struct {
	rocks  *RockService
	writer FusionWriter
}

// NewLabService creates a new LabService.
func NewLabService(rocks *RockService, writer FusionWriter) *LabService {
	return &LabService{rocks: rocks, writer: writer}
}

// Fuse creates a lab specimen from two of the user's specimens and awards XP
// for it. The source specimens are kept.
func (s *LabService) Fuse(ctx context.Context, userID, rockA, rockB string) (SpecimenResult, error) {
	if rockA == "" || rockB == "" {
		return SpecimenResult{}, fmt.Errorf("%w: two specimens are required", ErrValidation)
	}
	if rockA == rockB {
		return SpecimenResult{}, fmt.Errorf("%w: a specimen cannot be fused with itself", ErrValidation)
	}

	a, err := s.rocks.ownedRock(ctx, userID, rockA)
	if err != nil {
		return SpecimenResult{}, err
	}
	b, err := s.rocks.ownedRock(ctx, userID, rockB)
	if err != nil {
		return SpecimenResult{}, err
	}

	composition := unionComposition(a.Composition, b.Composition)
	fused := models.Rock{
		Type:        "synthetic",
		RarityScore: gamification.FusionRarity(a.RarityScore, b.RarityScore),
		Composition: composition,
		Hardness:    (a.Hardness + b.Hardness) / 2,
		Confidence:  1,
		Origin:      models.OriginLab,
	}

	text, err := s.writer.DescribeFusion(ctx, a, b, composition)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Fusion text unavailable, using fallback")
		text = fallbackFusionText(a, b)
	}
	fused.Name = text.Name
	fused.Description = text.Description

	img, mime, err := s.writer.Illustrate(ctx, fmt.Sprintf("A glowing synthetic mineral specimen called %s, museum lighting, black background.", fused.Name))
	if err != nil {
		log.Debug().Err(err).Msg("Fusion illustration skipped")
	} else {
		fused.ImageURL = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img)
	}

	return s.rocks.logSpecimen(ctx, userID, fused)
}

func fallbackFusionText(a, b models.Rock) ai.FusionText {
	return ai.FusionText{
		Name:        fmt.Sprintf("%s-%s Fusion", firstWord(a.Name), firstWord(b.Name)),
		Description: fmt.Sprintf("A synthetic specimen forged in the lab from %s and %s.", a.Name, b.Name),
	}
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return "Unknown"
}

// unionComposition keeps a's order, then appends b's components not already
// present (case-insensitive).
func unionComposition(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, c := range list {
			key := strings.ToLower(strings.TrimSpace(c))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, strings.TrimSpace(c))
		}
	}
	return out
}
