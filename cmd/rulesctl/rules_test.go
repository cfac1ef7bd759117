package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ahmednasr/mapping-assistant/internal/models"
	"github.com/ahmednasr/mapping-assistant/internal/repository"
)

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSeed_Bundled(t *testing.T) {
	rules, err := loadSeed(filepath.Join("..", "..", "testdata", "rules.yaml"))
	require.NoError(t, err)
	require.Len(t, rules, 6)
	assert.Equal(t, "Avoid SELECT *", rules[0].Title)
	assert.Equal(t, `SELECT\s+\*`, rules[0].CodePattern)
	assert.Equal(t, models.PracticeGood, rules[1].PracticeType)
}

func TestLoadSeed_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad pattern", "rules:\n  - {id: 1, language: SQL, title: A, code_pattern: 'SELECT (\\*'}\n  - {id: 2, language: SQL, title: B}\n", "code_pattern does not compile"},
		{"duplicate id", "rules:\n  - {id: 1, language: SQL, title: A}\n  - {id: 1, language: SQL, title: B}\n", `already used by "A"`},
		{"missing title", "rules:\n  - {id: 1, language: SQL}\n", "language and title are required"},
		{"bad practice", "rules:\n  - {id: 1, language: SQL, title: A, practice_type: meh}\n", "practice_type must be good or bad"},
		{"empty", "rules: []\n", "has no rules"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadSeed(writeSeed(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

type fakeEmbedder struct{ fail string }

func (f fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.fail != "" && strings.HasPrefix(text, f.fail) {
		return nil, errors.New("embedding backend down")
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestSeedAndVectorize(t *testing.T) {
	ctx := context.Background()
	store, err := repository.OpenRuleSQLite(ctx, filepath.Join(t.TempDir(), "rules.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureSchema(ctx))

	rules, err := loadSeed(filepath.Join("..", "..", "testdata", "rules.yaml"))
	require.NoError(t, err)
	require.NoError(t, seedRules(ctx, store, rules))
	// seeding twice updates in place
	require.NoError(t, seedRules(ctx, store, rules))

	n, err := vectorizeRules(ctx, store, fakeEmbedder{fail: "Avoid collect()"}, zap.NewNop())
	assert.Equal(t, 5, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 6")

	missing, err := store.MissingVectors(ctx)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, int64(4), missing[0].ID)

	vectors, err := store.VectorRules(ctx, "SQL")
	require.NoError(t, err)
	assert.Len(t, vectors, 3)

	n, err = vectorizeRules(ctx, store, fakeEmbedder{}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
