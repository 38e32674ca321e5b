package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/isdelr/rockhound-be/internal/database"
	"github.com/isdelr/rockhound-be/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoUserRepository implements UserRepository on MongoDB.
type MongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoStore creates repositories backed by a MongoDB database.
func NewMongoStore(db *mongo.Database) *Store {
	return &Store{
		Users: &MongoUserRepository{collection: db.Collection(database.UsersCollection)},
		Rocks: &MongoRockRepository{collection: db.Collection(database.RocksCollection)},
	}
}

// Create inserts a new user.
func (r *MongoUserRepository) Create(ctx context.Context, user models.User) (models.User, error) {
	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, fmt.Errorf("user %s: %w", user.Email, ErrDuplicate)
		}
		return models.User{}, err
	}
	return user, nil
}

// GetByID retrieves a single user by their ID.
func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "_id", id)
}

// GetByEmail retrieves a single user by their email, including the password hash.
func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "email", email)
}

// GetByUsername retrieves a single user by their username.
func (r *MongoUserRepository) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findOne(ctx, "username", username)
}

func (r *MongoUserRepository) findOne(ctx context.Context, field, value string) (models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{field: value}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, fmt.Errorf("user with %s %s: %w", field, value, ErrNotFound)
		}
		return models.User{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

// AddXP increments a user's XP and returns the updated user.
func (r *MongoUserRepository) AddXP(ctx context.Context, id string, delta int) (models.User, error) {
	var user models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"xp": delta}}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, fmt.Errorf("user with id %s: %w", id, ErrNotFound)
		}
		return models.User{}, err
	}
	if user.XP < 0 {
		// Keep the counter non-negative, matching the SQLite store.
		_, err = r.collection.UpdateByID(ctx, id, bson.M{"$set": bson.M{"xp": 0}})
		user.XP = 0
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, err
}

// Count returns the number of registered users.
func (r *MongoUserRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

// CountByRole returns the number of users holding role.
func (r *MongoUserRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"role": role})
}
