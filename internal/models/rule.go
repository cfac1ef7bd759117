package models

import "time"

// Practice types a rule can carry.
const (
	PracticeGood = "good"
	PracticeBad  = "bad"
)

// Retrieval methods reported alongside a RetrievalResult.
const (
	MethodRegex  = "Regex Match"
	MethodVector = "Vector Search"
	MethodError  = "Error"
)

// Rule is a single style/best-practice rule held in the rule store.
// (Language, Title) is unique.
type Rule struct {
	ID           int64     `bson:"_id"                    json:"id"                     yaml:"id"`
	CodePattern  string    `bson:"code_pattern,omitempty" json:"code_pattern,omitempty" yaml:"code_pattern"`
	Language     string    `bson:"language"               json:"language"               yaml:"language"`
	Category     string    `bson:"category"               json:"category"               yaml:"category"`
	Severity     string    `bson:"severity"               json:"severity"               yaml:"severity"`
	Title        string    `bson:"title"                  json:"title"                  yaml:"title"`
	Description  string    `bson:"description"            json:"description"            yaml:"description"`
	PracticeType string    `bson:"practice_type"          json:"practice_type"          yaml:"practice_type"`
	LastUpdated  time.Time `bson:"last_updated_utc"       json:"last_updated_utc"       yaml:"-"`
	Vector       []float32 `bson:"vector,omitempty"       json:"-"                      yaml:"-"`
}

// EmbeddingText is the text a rule is vectorized from.
func (r Rule) EmbeddingText() string {
	return r.Title + ". Category: " + r.Category + ". Description: " + r.Description
}

// MatchedRule is a rule as handed to the review generator.
// Similarity is only set for vector matches.
type MatchedRule struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Severity     string  `json:"severity"`
	PracticeType string  `json:"practice_type"`
	Category     string  `json:"category"`
	Similarity   float64 `json:"similarity,omitempty"`
}

// Match projects a rule onto the fields the reviewer needs.
func (r Rule) Match(similarity float64) MatchedRule {
	return MatchedRule{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Severity:     r.Severity,
		PracticeType: r.PracticeType,
		Category:     r.Category,
		Similarity:   similarity,
	}
}

// RetrievalResult is what the retriever found for one chunk.
type RetrievalResult struct {
	GoodPractices []MatchedRule `json:"good_practices"`
	BadPractices  []MatchedRule `json:"bad_practices"`
	Method        string        `json:"method"`
}
