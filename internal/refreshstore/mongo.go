package refreshstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type refreshRecordDocument struct {
	JTI         string    `bson:"_id"`
	Username    string    `bson:"username"`
	FamilyID    string    `bson:"family_id"`
	PreviousJti string    `bson:"previous_jti,omitempty"`
	Revoked     bool      `bson:"revoked"`
	IssuedAt    time.Time `bson:"issued_at"`
	ExpiresAt   time.Time `bson:"expires_at"`
}

type familyRevocationDocument struct {
	FamilyID  string    `bson:"_id"`
	RevokedAt time.Time `bson:"revoked_at"`
}

type consumeMarkerDocument struct {
	JTI       string    `bson:"_id"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// MongoStore is the MongoDB-backed C4 implementation. Record documents
// and consume markers are TTL-indexed on expires_at; family revocation
// is a single upserted tombstone document, same O(1) shape as the Redis
// backend's tombstone key.
type MongoStore struct {
	records    *mongo.Collection
	families   *mongo.Collection
	consumed   *mongo.Collection
}

// NewMongoStore wraps db's collections. CreateIndexes should be called
// once at startup.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		records:  db.Collection("refresh_token_records"),
		families: db.Collection("refresh_family_revocations"),
		consumed: db.Collection("refresh_consume_markers"),
	}
}

// CreateIndexes sets up the TTL indexes backing native expiry for the
// records and consume-marker collections.
func (s *MongoStore) CreateIndexes(ctx context.Context) error {
	ttl := int32(0)
	_, err := s.records.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(ttl)},
		{Keys: bson.D{{Key: "username", Value: 1}}},
		{Keys: bson.D{{Key: "family_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("refreshstore(mongo): create record indexes: %w", err)
	}
	_, err = s.consumed.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(ttl),
	})
	if err != nil {
		return fmt.Errorf("refreshstore(mongo): create consume marker index: %w", err)
	}
	return nil
}

func (s *MongoStore) Save(ctx context.Context, rec Record) error {
	doc := refreshRecordDocument{
		JTI:         rec.JTI,
		Username:    rec.Username,
		FamilyID:    rec.FamilyID,
		PreviousJti: rec.PreviousJti,
		Revoked:     rec.Revoked,
		IssuedAt:    rec.IssuedAt,
		ExpiresAt:   rec.ExpiresAt,
	}
	if _, err := s.records.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("refreshstore(mongo): save: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByJti(ctx context.Context, jti string) (Record, error) {
	var doc refreshRecordDocument
	err := s.records.FindOne(ctx, bson.M{"_id": jti}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("refreshstore(mongo): find: %w", err)
	}

	if !doc.Revoked {
		count, err := s.families.CountDocuments(ctx, bson.M{"_id": doc.FamilyID})
		if err != nil {
			return Record{}, fmt.Errorf("refreshstore(mongo): family check: %w", err)
		}
		doc.Revoked = count > 0
	}

	return Record{
		JTI:         doc.JTI,
		Username:    doc.Username,
		FamilyID:    doc.FamilyID,
		PreviousJti: doc.PreviousJti,
		Revoked:     doc.Revoked,
		IssuedAt:    doc.IssuedAt,
		ExpiresAt:   doc.ExpiresAt,
	}, nil
}

func (s *MongoStore) Revoke(ctx context.Context, jti string) error {
	_, err := s.records.UpdateByID(ctx, jti, bson.M{"$set": bson.M{"revoked": true}})
	if err != nil {
		return fmt.Errorf("refreshstore(mongo): revoke: %w", err)
	}
	return nil
}

func (s *MongoStore) RevokeFamily(ctx context.Context, familyID string) error {
	doc := familyRevocationDocument{FamilyID: familyID, RevokedAt: time.Now()}
	_, err := s.families.ReplaceOne(ctx, bson.M{"_id": familyID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("refreshstore(mongo): revoke family: %w", err)
	}
	return nil
}

func (s *MongoStore) DeleteAllForUser(ctx context.Context, username string) error {
	_, err := s.records.DeleteMany(ctx, bson.M{"username": username})
	if err != nil {
		return fmt.Errorf("refreshstore(mongo): delete all for user: %w", err)
	}
	return nil
}

func (s *MongoStore) FindAllForUser(ctx context.Context, username string) ([]string, error) {
	cursor, err := s.records.Find(ctx, bson.M{"username": username})
	if err != nil {
		return nil, fmt.Errorf("refreshstore(mongo): find all for user: %w", err)
	}
	defer cursor.Close(ctx)

	var jtis []string
	for cursor.Next(ctx) {
		var doc refreshRecordDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("refreshstore(mongo): decode: %w", err)
		}
		jtis = append(jtis, doc.JTI)
	}
	return jtis, cursor.Err()
}

func (s *MongoStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	result, err := s.records.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": before}})
	if err != nil {
		return 0, fmt.Errorf("refreshstore(mongo): delete expired: %w", err)
	}
	return int(result.DeletedCount), nil
}

// ConsumeOnce uses InsertOne against a unique _id: the first caller's
// insert succeeds, every subsequent caller hits a duplicate-key error.
func (s *MongoStore) ConsumeOnce(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	doc := consumeMarkerDocument{JTI: jti, ExpiresAt: time.Now().Add(ttl)}
	_, err := s.consumed.InsertOne(ctx, doc)
	if err == nil {
		return true, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	return false, fmt.Errorf("refreshstore(mongo): consume once: %w", err)
}
