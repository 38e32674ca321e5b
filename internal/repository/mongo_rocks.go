package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/isdelr/rockhound-be/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRockRepository implements RockRepository on MongoDB.
type MongoRockRepository struct {
	collection *mongo.Collection
}

// Create inserts a new specimen.
func (r *MongoRockRepository) Create(ctx context.Context, rock models.Rock) (models.Rock, error) {
	if rock.Composition == nil {
		rock.Composition = []string{}
	}
	if _, err := r.collection.InsertOne(ctx, rock); err != nil {
		return models.Rock{}, err
	}
	return rock, nil
}

// GetByID retrieves a single specimen by its ID.
func (r *MongoRockRepository) GetByID(ctx context.Context, id string) (models.Rock, error) {
	var rock models.Rock
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rock)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Rock{}, fmt.Errorf("rock with id %s: %w", id, ErrNotFound)
		}
		return models.Rock{}, err
	}
	normalizeRock(&rock)
	return rock, nil
}

// ListByUser returns a user's specimens, newest first.
func (r *MongoRockRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Rock, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	rocks := []models.Rock{}
	if err := cursor.All(ctx, &rocks); err != nil {
		return nil, err
	}
	for i := range rocks {
		normalizeRock(&rocks[i])
	}
	return rocks, nil
}

// Delete removes a specimen.
func (r *MongoRockRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("rock with id %s: %w", id, ErrNotFound)
	}
	return nil
}

// Summary aggregates a user's collection.
func (r *MongoRockRepository) Summary(ctx context.Context, userID string) (models.CollectionSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"userId": userID}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "count", Value: bson.M{"$sum": 1}},
			{Key: "types", Value: bson.M{"$addToSet": "$type"}},
			{Key: "maxRarity", Value: bson.M{"$max": "$rarityScore"}},
			{Key: "lab", Value: bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$origin", models.OriginLab}}, 1, 0}}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return models.CollectionSummary{}, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Count     int      `bson:"count"`
		Types     []string `bson:"types"`
		MaxRarity int      `bson:"maxRarity"`
		Lab       int      `bson:"lab"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return models.CollectionSummary{}, err
	}
	if len(rows) == 0 {
		return models.CollectionSummary{}, nil
	}
	return models.CollectionSummary{
		Count:          rows[0].Count,
		DistinctTypes:  len(rows[0].Types),
		MaxRarityScore: rows[0].MaxRarity,
		LabFusions:     rows[0].Lab,
	}, nil
}

// Count returns the number of specimens across all users.
func (r *MongoRockRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

// DailyCounts buckets specimens created since the given time by UTC day.
func (r *MongoRockRepository) DailyCounts(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"createdAt": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$createdAt"}}},
			{Key: "count", Value: bson.M{"$sum": 1}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	counts := []models.DailyCount{}
	if err := r.aggregate(ctx, pipeline, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// RarityDistribution counts specimens per rarity tier.
func (r *MongoRockRepository) RarityDistribution(ctx context.Context) ([]models.LabelCount, error) {
	return r.labelCounts(ctx, "$rarity", 0)
}

// TopNames returns the most frequently logged specimen names.
func (r *MongoRockRepository) TopNames(ctx context.Context, limit int) ([]models.LabelCount, error) {
	return r.labelCounts(ctx, "$name", limit)
}

func (r *MongoRockRepository) labelCounts(ctx context.Context, field string, limit int) ([]models.LabelCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: field},
			{Key: "count", Value: bson.M{"$sum": 1}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}

	counts := []models.LabelCount{}
	if err := r.aggregate(ctx, pipeline, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *MongoRockRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

func normalizeRock(rock *models.Rock) {
	rock.CreatedAt = rock.CreatedAt.UTC()
	if rock.Composition == nil {
		rock.Composition = []string{}
	}
}
