package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"goplay/internal/domain/user"
)

const usersCollection = "users"

// MongoUserStorage maintains the win/loss counters of players.
type MongoUserStorage struct {
	mongo   *mongo.Database
	timeout time.Duration
}

func NewMongoUserStorage(mongo *mongo.Database, timeout time.Duration) *MongoUserStorage {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MongoUserStorage{mongo: mongo, timeout: timeout}
}

// RecordResult adds one win to winnerID and one loss to loserID, creating
// the counters on first use.
func (m *MongoUserStorage) RecordResult(ctx context.Context, winnerID, loserID string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	collection := m.mongo.Collection(usersCollection)
	opts := options.Update().SetUpsert(true)

	if _, err := collection.UpdateOne(ctx, bson.M{"_id": winnerID}, bson.M{"$inc": bson.M{"statistic.wins": 1}}, opts); err != nil {
		return fmt.Errorf("record win of %s: %w", winnerID, err)
	}
	if _, err := collection.UpdateOne(ctx, bson.M{"_id": loserID}, bson.M{"$inc": bson.M{"statistic.losses": 1}}, opts); err != nil {
		return fmt.Errorf("record loss of %s: %w", loserID, err)
	}
	return nil
}

// GetUserByID returns a zero statistic for players who never finished a game.
func (m *MongoUserStorage) GetUserByID(ctx context.Context, userID string) (user.User, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var found user.User
	err := m.mongo.Collection(usersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&found)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return user.User{ID: userID}, nil
	}
	if err != nil {
		return user.User{}, fmt.Errorf("read user %s: %w", userID, err)
	}
	return found, nil
}
