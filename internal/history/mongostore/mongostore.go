package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/weiawesome/wes-io-live/chatroom/internal/config"
	"github.com/weiawesome/wes-io-live/chatroom/internal/domain"
)

// message mirrors the documents of the messages collection.
type message struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Username  string             `bson:"username"`
	Msg       string             `bson:"msg"`
	Time      string             `bson:"time"`
	Room      string             `bson:"room"`
	CreatedAt primitive.DateTime `bson:"created_at"`
}

func fromRecord(r domain.Record) message {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return message{
		ID:        primitive.NewObjectID(),
		Username:  r.Username,
		Msg:       r.Text,
		Time:      r.Time,
		Room:      r.Room,
		CreatedAt: primitive.NewDateTimeFromTime(createdAt),
	}
}

func (m message) record() domain.Record {
	return domain.Record{
		ID:        m.ID.Hex(),
		Room:      m.Room,
		Username:  m.Username,
		Text:      m.Msg,
		Time:      m.Time,
		CreatedAt: m.CreatedAt.Time(),
	}
}

// Store keeps history in a MongoDB collection ordered by _id.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func New(cfg config.MongoConfig) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to mongo: %w", domain.ErrStoreUnavailable, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: failed to ping mongo: %w", domain.ErrStoreUnavailable, err)
	}

	collection := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "room", Value: 1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: failed to create room index: %w", domain.ErrStoreUnavailable, err)
	}

	return &Store{client: client, collection: collection}, nil
}

func (s *Store) Append(ctx context.Context, record domain.Record) (domain.Record, error) {
	doc := fromRecord(record)
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return domain.Record{}, fmt.Errorf("%w: failed to insert message: %w", domain.ErrStoreUnavailable, err)
	}
	return doc.record(), nil
}

func (s *Store) Recent(ctx context.Context, room string, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		return []domain.Record{}, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.collection.Find(ctx, bson.M{"room": room}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query messages: %w", domain.ErrStoreUnavailable, err)
	}

	var docs []message
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: failed to decode messages: %w", domain.ErrStoreUnavailable, err)
	}
	return toRecords(docs), nil
}

// toRecords reverses newest-first documents into oldest-first records.
func toRecords(docs []message) []domain.Record {
	records := make([]domain.Record, len(docs))
	for i, doc := range docs {
		records[len(docs)-1-i] = doc.record()
	}
	return records
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
