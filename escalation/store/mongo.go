package store

import (
	"context"
	"fmt"
	"time"

	cfgpkg "github.com/sweetpotato0/ticketpilot/config"
	"github.com/sweetpotato0/ticketpilot/escalation"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// DefaultMongoConfig returns default MongoDB configuration
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "ticketpilot",
		Collection: "escalations",
	}
}

// mongoRecord is the internal representation for MongoDB
type mongoRecord struct {
	Timestamp        time.Time `bson:"ts"`
	TicketID         string    `bson:"ticket_id"`
	Subject          string    `bson:"subject"`
	Description      string    `bson:"description"`
	Category         string    `bson:"category"`
	Confidence       float64   `bson:"classification_confidence"`
	NumDrafts        int       `bson:"num_drafts"`
	NumReviews       int       `bson:"num_reviews"`
	FinalReviewScore float64   `bson:"final_review_score"`
	Reason           string    `bson:"escalation_reason"`
	FailedDrafts     []string  `bson:"failed_drafts"`
	ReviewerFeedback []string  `bson:"reviewer_feedback"`
}

// MongoLog implements the escalation log on MongoDB. InsertOne is atomic per
// document, so concurrent workflow runs append whole records.
type MongoLog struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoLog creates a new MongoDB-backed escalation log.
func NewMongoLog(config *MongoConfig) (*MongoLog, error) {
	if config == nil {
		config = DefaultMongoConfig()
	}
	if err := cfgpkg.ValidateMongoConfig(config.URI, config.Database, config.Collection); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(config.Database).Collection(config.Collection)

	log := &MongoLog{
		client:     client,
		collection: collection,
	}

	if err := log.createIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return log, nil
}

func (l *MongoLog) createIndexes(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "ts", Value: 1}},
	}
	_, err := l.collection.Indexes().CreateOne(ctx, indexModel)
	return err
}

// Append inserts one escalation record.
func (l *MongoLog) Append(ctx context.Context, record escalation.Record) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	doc := mongoRecord{
		Timestamp:        record.Timestamp,
		TicketID:         record.TicketID,
		Subject:          record.Subject,
		Description:      record.Description,
		Category:         record.Category,
		Confidence:       record.Confidence,
		NumDrafts:        record.NumDrafts,
		NumReviews:       record.NumReviews,
		FinalReviewScore: record.FinalReviewScore,
		Reason:           record.Reason,
		FailedDrafts:     record.FailedDrafts,
		ReviewerFeedback: record.ReviewerFeedback,
	}

	if _, err := l.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to append escalation to MongoDB: %w", err)
	}
	return nil
}

// List returns all records sorted by timestamp ascending.
func (l *MongoLog) List(ctx context.Context) ([]escalation.Record, error) {
	cursor, err := l.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"ts": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoRecord
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode escalations: %w", err)
	}

	records := make([]escalation.Record, len(docs))
	for i, doc := range docs {
		records[i] = escalation.Record{
			Timestamp:        doc.Timestamp,
			TicketID:         doc.TicketID,
			Subject:          doc.Subject,
			Description:      doc.Description,
			Category:         doc.Category,
			Confidence:       doc.Confidence,
			NumDrafts:        doc.NumDrafts,
			NumReviews:       doc.NumReviews,
			FinalReviewScore: doc.FinalReviewScore,
			Reason:           doc.Reason,
			FailedDrafts:     doc.FailedDrafts,
			ReviewerFeedback: doc.ReviewerFeedback,
		}
	}
	return records, nil
}

// Count returns the number of records in the log.
func (l *MongoLog) Count(ctx context.Context) (int, error) {
	count, err := l.collection.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count escalations: %w", err)
	}
	return int(count), nil
}

// Close closes the MongoDB connection
func (l *MongoLog) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return l.client.Disconnect(ctx)
}

// Ping checks if MongoDB connection is alive
func (l *MongoLog) Ping(ctx context.Context) error {
	return l.client.Ping(ctx, nil)
}
