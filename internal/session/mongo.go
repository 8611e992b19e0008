package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sessionCollection = "game_sessions"

// MongoRegistry backs the session registry with a MongoDB collection so
// several coordinator instances can share one registry. The TTL index on
// expires_at lets MongoDB purge unconsumed sessions on its own.
type MongoRegistry struct {
	coll *mongo.Collection
	ttl  time.Duration
}

type sessionDoc struct {
	SessionId string    `bson:"_id"`
	RoomId    string    `bson:"room_id"`
	UserId    int64     `bson:"user_id"`
	ExpiresAt time.Time `bson:"expires_at"`
}

func NewMongoRegistry(ctx context.Context, db *mongo.Database, ttl time.Duration) (*MongoRegistry, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	coll := db.Collection(sessionCollection)

	indexModel := mongo.IndexModel{
		Keys:    bson.M{"expires_at": 1},
		Options: options.Index().SetExpireAfterSeconds(0), // expire at the expires_at timestamp itself
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		return nil, err
	}

	return &MongoRegistry{coll: coll, ttl: ttl}, nil
}

func (r *MongoRegistry) Create(ctx context.Context, roomId string, userId int64) (*Session, error) {
	doc := sessionDoc{
		SessionId: uuid.New().String(),
		RoomId:    roomId,
		UserId:    userId,
		ExpiresAt: time.Now().Add(r.ttl),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return &Session{
		SessionId: doc.SessionId,
		RoomId:    doc.RoomId,
		UserId:    doc.UserId,
		ExpiresAt: doc.ExpiresAt,
	}, nil
}

// ValidateAndConsume relies on FindOneAndDelete for atomicity: the full
// filter matches at most one live, correctly bound session and removes
// it in the same operation, so exactly one concurrent caller wins.
func (r *MongoRegistry) ValidateAndConsume(ctx context.Context, sessionId, roomId string, userId int64) bool {
	filter := bson.M{
		"_id":        sessionId,
		"room_id":    roomId,
		"user_id":    userId,
		"expires_at": bson.M{"$gt": time.Now()},
	}

	err := r.coll.FindOneAndDelete(ctx, filter).Err()
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			log.Errorf("session consume failed for %s: %v", sessionId, err)
		}
		return false
	}
	return true
}
