package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/isdelr/rockhound-be/internal/models"
)

// SQLiteRockRepository implements RockRepository on SQLite.
type SQLiteRockRepository struct {
	db *sql.DB
}

const rockColumns = `id, user_id, name, type, description, rarity, rarity_score, composition_json,
	hardness, confidence, image_url, origin, xp_awarded, created_at`

// Create inserts a new specimen.
func (r *SQLiteRockRepository) Create(ctx context.Context, rock models.Rock) (models.Rock, error) {
	composition, err := json.Marshal(rock.Composition)
	if err != nil {
		return models.Rock{}, fmt.Errorf("failed to encode composition: %w", err)
	}

	stmt, err := r.db.PrepareContext(ctx, "INSERT INTO rocks("+rockColumns+") VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return models.Rock{}, err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx,
		rock.ID, rock.UserID, rock.Name, rock.Type, rock.Description, rock.Rarity, rock.RarityScore, string(composition),
		rock.Hardness, rock.Confidence, rock.ImageURL, rock.Origin, rock.XPAwarded, rock.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return models.Rock{}, err
	}
	return rock, nil
}

// GetByID retrieves a single specimen by its ID.
func (r *SQLiteRockRepository) GetByID(ctx context.Context, id string) (models.Rock, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+rockColumns+" FROM rocks WHERE id = ?", id)
	rock, err := scanRock(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Rock{}, fmt.Errorf("rock with id %s: %w", id, ErrNotFound)
		}
		return models.Rock{}, err
	}
	return rock, nil
}

// ListByUser returns a user's specimens, newest first.
func (r *SQLiteRockRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Rock, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+rockColumns+" FROM rocks WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rocks := []models.Rock{}
	for rows.Next() {
		rock, err := scanRock(rows)
		if err != nil {
			return nil, err
		}
		rocks = append(rocks, rock)
	}
	return rocks, rows.Err()
}

// Delete removes a specimen.
func (r *SQLiteRockRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM rocks WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rock with id %s: %w", id, ErrNotFound)
	}
	return nil
}

// Summary aggregates a user's collection.
func (r *SQLiteRockRepository) Summary(ctx context.Context, userID string) (models.CollectionSummary, error) {
	var s models.CollectionSummary
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT type),
		       COALESCE(MAX(rarity_score), 0),
		       COALESCE(SUM(CASE WHEN origin = ? THEN 1 ELSE 0 END), 0)
		FROM rocks WHERE user_id = ?`, models.OriginLab, userID,
	).Scan(&s.Count, &s.DistinctTypes, &s.MaxRarityScore, &s.LabFusions)
	return s, err
}

// Count returns the number of specimens across all users.
func (r *SQLiteRockRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rocks").Scan(&n)
	return n, err
}

// DailyCounts buckets specimens created since the given time by UTC day.
func (r *SQLiteRockRepository) DailyCounts(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m-%d', created_at / 1000, 'unixepoch') AS day, COUNT(*)
		FROM rocks WHERE created_at >= ?
		GROUP BY day ORDER BY day`, since.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []models.DailyCount{}
	for rows.Next() {
		var c models.DailyCount
		if err := rows.Scan(&c.Date, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// RarityDistribution counts specimens per rarity tier.
func (r *SQLiteRockRepository) RarityDistribution(ctx context.Context) ([]models.LabelCount, error) {
	return r.labelCounts(ctx, `
		SELECT rarity, COUNT(*) AS n FROM rocks
		GROUP BY rarity ORDER BY n DESC, rarity`)
}

// TopNames returns the most frequently logged specimen names.
func (r *SQLiteRockRepository) TopNames(ctx context.Context, limit int) ([]models.LabelCount, error) {
	return r.labelCounts(ctx, `
		SELECT name, COUNT(*) AS n FROM rocks
		GROUP BY name ORDER BY n DESC, name LIMIT ?`, limit)
}

func (r *SQLiteRockRepository) labelCounts(ctx context.Context, query string, args ...any) ([]models.LabelCount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []models.LabelCount{}
	for rows.Next() {
		var c models.LabelCount
		if err := rows.Scan(&c.Label, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRock(row rowScanner) (models.Rock, error) {
	var rock models.Rock
	var rockType, description, rarity, composition, imageURL sql.NullString
	var hardness, confidence sql.NullFloat64
	var createdAt int64

	err := row.Scan(
		&rock.ID, &rock.UserID, &rock.Name, &rockType, &description, &rarity, &rock.RarityScore, &composition,
		&hardness, &confidence, &imageURL, &rock.Origin, &rock.XPAwarded, &createdAt,
	)
	if err != nil {
		return models.Rock{}, err
	}

	// Safely assign values from nullable types to the struct
	rock.Type = rockType.String
	rock.Description = description.String
	rock.Rarity = rarity.String
	rock.Hardness = hardness.Float64
	rock.Confidence = confidence.Float64
	rock.ImageURL = imageURL.String
	rock.CreatedAt = time.UnixMilli(createdAt).UTC()
	rock.Composition = []string{}
	if composition.Valid && composition.String != "" {
		if err := json.Unmarshal([]byte(composition.String), &rock.Composition); err != nil {
			return models.Rock{}, fmt.Errorf("failed to decode composition: %w", err)
		}
		if rock.Composition == nil {
			rock.Composition = []string{}
		}
	}
	return rock, nil
}
