package datastore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/lepinkainen/bookfeed/internal/catalog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// mongoBook is the stored document; _id carries the ExternalID.
type mongoBook struct {
	ID            string    `bson:"_id"`
	ISBN10        string    `bson:"isbn10"`
	Title         string    `bson:"title"`
	Authors       string    `bson:"authors"`
	Categories    string    `bson:"categories"`
	Thumbnail     string    `bson:"thumbnail"`
	Description   string    `bson:"description"`
	PublishedYear int       `bson:"published_year"`
	AverageRating float64   `bson:"average_rating"`
	RatingsCount  int       `bson:"ratings_count"`
	Source        string    `bson:"source,omitempty"`
	IngestedAt    time.Time `bson:"ingested_at"`
}

func toMongoBook(rec catalog.Record) mongoBook {
	return mongoBook{
		ID:            rec.ExternalID,
		ISBN10:        rec.ExternalID,
		Title:         rec.Title,
		Authors:       rec.Authors,
		Categories:    rec.Categories,
		Thumbnail:     rec.ThumbnailURL,
		Description:   rec.Description,
		PublishedYear: rec.PublishedYear,
		AverageRating: rec.AverageRating,
		RatingsCount:  rec.RatingsCount,
		Source:        rec.Source,
		IngestedAt:    rec.IngestedAt.UTC(),
	}
}

func (b mongoBook) record() catalog.Record {
	return catalog.Record{
		ExternalID:    b.ID,
		Title:         b.Title,
		Authors:       b.Authors,
		Categories:    b.Categories,
		ThumbnailURL:  b.Thumbnail,
		Description:   b.Description,
		PublishedYear: b.PublishedYear,
		AverageRating: b.AverageRating,
		RatingsCount:  b.RatingsCount,
		Source:        b.Source,
		IngestedAt:    b.IngestedAt.UTC(),
	}
}

// titleFilter matches the whole title case-insensitively.
func titleFilter(title string) bson.M {
	return bson.M{"title": primitive.Regex{
		Pattern: "^" + regexp.QuoteMeta(title) + "$",
		Options: "i",
	}}
}

// MongoStore is a Collection backed by a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	name   string
}

// OpenMongo connects to uri and binds the named collection in database.
func OpenMongo(ctx context.Context, uri, database, name string) (*MongoStore, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	coll := client.Database(database).Collection(name)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "title", Value: 1}}},
		{Keys: bson.D{{Key: "ingested_at", Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes on %s: %w", name, err)
	}

	return &MongoStore{client: client, coll: coll, name: name}, nil
}

// Name implements Collection.
func (s *MongoStore) Name() string { return s.name }

// Ping implements Collection.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// FindByID implements Collection.
func (s *MongoStore) FindByID(ctx context.Context, id string) (*catalog.Record, error) {
	var doc mongoBook
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: find by id: %w", s.name, err)
	}
	rec := doc.record()
	return &rec, nil
}

// FindByTitle implements Collection.
func (s *MongoStore) FindByTitle(ctx context.Context, title string) ([]catalog.Record, error) {
	cur, err := s.coll.Find(ctx, titleFilter(title), options.Find().SetLimit(titleMatchLimit))
	if err != nil {
		return nil, fmt.Errorf("%s: find by title: %w", s.name, err)
	}

	var docs []mongoBook
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", s.name, err)
	}

	out := make([]catalog.Record, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.record())
	}
	return out, nil
}

// InsertOne implements Collection.
func (s *MongoStore) InsertOne(ctx context.Context, rec catalog.Record) error {
	_, err := s.coll.InsertOne(ctx, toMongoBook(rec))
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("%s: insert %s: %w", s.name, rec.ExternalID, err)
	}
	return nil
}

// DeleteMany implements Collection.
func (s *MongoStore) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	if filter.Empty() {
		return 0, ErrEmptyFilter
	}
	res, err := s.coll.DeleteMany(ctx, bson.M{"ingested_at": bson.M{"$lt": filter.IngestedBefore.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("%s: delete: %w", s.name, err)
	}
	return res.DeletedCount, nil
}

// Count implements Collection.
func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("%s: count: %w", s.name, err)
	}
	return n, nil
}

// Close disconnects the client. Each MongoStore owns its own client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
