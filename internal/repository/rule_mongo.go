package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ahmednasr/mapping-assistant/internal/database"
	"github.com/ahmednasr/mapping-assistant/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RuleMongo provides Mongo-backed persistence for review rules.
//
// Expected schema:
//
//	rules
//	  { _id: int64, code_pattern?, language, category, severity, title,
//	    description, practice_type, last_updated_utc, vector?: []float32 }
type RuleMongo struct {
	col    *mongo.Collection
	client *mongo.Client // set when this handle owns the connection
}

// NewRuleMongo returns a RuleMongo that operates on the "rules" collection.
func NewRuleMongo(db *mongo.Database) *RuleMongo {
	return &RuleMongo{col: db.Collection("rules")}
}

// OpenRuleMongo connects to uri and returns a handle that disconnects on Close.
func OpenRuleMongo(ctx context.Context, uri, dbName string) (*RuleMongo, error) {
	client, err := database.NewMongo(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return &RuleMongo{col: client.Database(dbName).Collection("rules"), client: client}, nil
}

// EnsureSchema creates the unique (language, title) index.
func (r *RuleMongo) EnsureSchema(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "language", Value: 1}, {Key: "title", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("language_title"),
	})
	return err
}

// Upsert inserts the rule or updates the one with the same language and title.
func (r *RuleMongo) Upsert(ctx context.Context, rule models.Rule) error {
	if rule.PracticeType == "" {
		rule.PracticeType = models.PracticeBad
	}
	set := bson.M{
		"code_pattern":     rule.CodePattern,
		"category":         rule.Category,
		"severity":         rule.Severity,
		"description":      rule.Description,
		"practice_type":    rule.PracticeType,
		"last_updated_utc": time.Now().UTC(),
	}
	if rule.Vector != nil {
		set["vector"] = rule.Vector
	}
	_, err := r.col.UpdateOne(ctx,
		bson.M{"language": rule.Language, "title": rule.Title},
		bson.M{"$set": set, "$setOnInsert": bson.M{"_id": rule.ID}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert rule %q: %w", rule.Title, err)
	}
	return nil
}

// RegexRules returns the bad-practice rules of language that carry a pattern.
func (r *RuleMongo) RegexRules(ctx context.Context, language string) ([]models.Rule, error) {
	return r.find(ctx, bson.M{
		"language":      language,
		"practice_type": models.PracticeBad,
		"code_pattern":  bson.M{"$exists": true, "$nin": bson.A{nil, ""}},
	})
}

// VectorRules returns the rules of language that have been vectorized.
func (r *RuleMongo) VectorRules(ctx context.Context, language string) ([]models.Rule, error) {
	return r.find(ctx, bson.M{
		"language": language,
		"vector":   bson.M{"$exists": true, "$ne": nil},
	})
}

// MissingVectors returns every rule that has no vector yet.
func (r *RuleMongo) MissingVectors(ctx context.Context) ([]models.Rule, error) {
	return r.find(ctx, bson.M{"$or": bson.A{
		bson.M{"vector": bson.M{"$exists": false}},
		bson.M{"vector": nil},
	}})
}

// SetVector stores the embedding of rule id.
func (r *RuleMongo) SetVector(ctx context.Context, id int64, vec []float32) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"vector":           vec,
		"last_updated_utc": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("set vector for rule %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("set vector: rule %d not found", id)
	}
	return nil
}

// Close disconnects the client if this handle opened it.
func (r *RuleMongo) Close() error {
	if r.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func (r *RuleMongo) find(ctx context.Context, filter bson.M) ([]models.Rule, error) {
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	defer cur.Close(ctx)

	var rules []models.Rule
	if err := cur.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return rules, nil
}
