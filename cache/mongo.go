package cache

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB database and collection names
const (
	MongoDBName            = "travel_cache"
	MongoEntriesCollection = "cache_entries"
	MongoSetsCollection    = "cache_sets"
)

// mongoEntry is one KV document. Entries past expires_at are treated as
// absent on read and lazily deleted; nothing relies on implicit GC.
type mongoEntry struct {
	Key       string     `bson:"_id"`
	Value     []byte     `bson:"value"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
	UpdatedAt time.Time  `bson:"updated_at"`
}

// mongoSet is one index-set document with its member list
type mongoSet struct {
	Key     string   `bson:"_id"`
	Members []string `bson:"members"`
}

// MongoBackend implements Backend on a MongoDB database
type MongoBackend struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewMongoBackend connects to MongoDB and verifies the connection with a
// ping. Returns an error when the URI is unreachable; the caller decides
// whether to run in fallback mode.
func NewMongoBackend(ctx context.Context, uri string) (*MongoBackend, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(connectCtx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	backend := &MongoBackend{
		client:   client,
		database: client.Database(MongoDBName),
	}
	backend.createIndexes()

	log.Println("MongoDB cache backend connected successfully")
	return backend, nil
}

// createIndexes creates the expiry index used by cleanup scans
func (m *MongoBackend) createIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries := m.database.Collection(MongoEntriesCollection)
	entries.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "expires_at", Value: 1}},
	})

	log.Println("MongoDB cache indexes created")
}

// Close disconnects from MongoDB
func (m *MongoBackend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoBackend) entries() *mongo.Collection {
	return m.database.Collection(MongoEntriesCollection)
}

func (m *MongoBackend) sets() *mongo.Collection {
	return m.database.Collection(MongoSetsCollection)
}

func (m *MongoBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry mongoEntry
	err := m.entries().FindOne(ctx, bson.M{"_id": key}).Decode(&entry)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}
	if entry.ExpiresAt != nil && !time.Now().Before(*entry.ExpiresAt) {
		// lazy eviction of the stale entry
		m.entries().DeleteOne(ctx, bson.M{"_id": key})
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (m *MongoBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := mongoEntry{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	if ttl > 0 {
		expires := time.Now().Add(ttl)
		entry.ExpiresAt = &expires
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := m.entries().ReplaceOne(ctx, bson.M{"_id": key}, entry, opts); err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	return nil
}

func (m *MongoBackend) Del(ctx context.Context, key string) (bool, error) {
	result, err := m.entries().DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return false, fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return result.DeletedCount > 0, nil
}

func (m *MongoBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}

func (m *MongoBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	// translate the '*' glob into an anchored regex with everything
	// else quoted, keeping pattern complexity bounded
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	expr := "^" + strings.Join(parts, ".*") + "$"

	cursor, err := m.entries().Find(ctx,
		bson.M{"_id": bson.M{"$regex": expr}},
		options.Find().SetProjection(bson.M{"_id": 1, "expires_at": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	defer cursor.Close(ctx)

	now := time.Now()
	var keys []string
	for cursor.Next(ctx) {
		var entry mongoEntry
		if err := cursor.Decode(&entry); err != nil {
			continue
		}
		if entry.ExpiresAt != nil && !now.Before(*entry.ExpiresAt) {
			continue
		}
		keys = append(keys, entry.Key)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	// index sets live in their own collection but share the namespace
	setCursor, err := m.sets().Find(ctx,
		bson.M{"_id": bson.M{"$regex": expr}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to scan set keys: %w", err)
	}
	defer setCursor.Close(ctx)
	for setCursor.Next(ctx) {
		var doc mongoSet
		if err := setCursor.Decode(&doc); err != nil {
			continue
		}
		keys = append(keys, doc.Key)
	}
	return keys, setCursor.Err()
}

func (m *MongoBackend) SetAdd(ctx context.Context, key, member string) error {
	opts := options.Update().SetUpsert(true)
	_, err := m.sets().UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$addToSet": bson.M{"members": member}},
		opts)
	if err != nil {
		return fmt.Errorf("failed to add %s to set %s: %w", member, key, err)
	}
	return nil
}

func (m *MongoBackend) SetRemove(ctx context.Context, key, member string) error {
	_, err := m.sets().UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$pull": bson.M{"members": member}})
	if err != nil {
		return fmt.Errorf("failed to remove %s from set %s: %w", member, key, err)
	}
	return nil
}

func (m *MongoBackend) SetMembers(ctx context.Context, key string) ([]string, error) {
	var doc mongoSet
	err := m.sets().FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read set %s: %w", key, err)
	}
	return doc.Members, nil
}

func (m *MongoBackend) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.client.Ping(pingCtx, nil)
}
