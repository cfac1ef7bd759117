package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ahmednasr/mapping-assistant/internal/models"
	"github.com/ahmednasr/mapping-assistant/internal/service"
)

// ---- Store contract ----

type ruleWriter interface {
	Upsert(ctx context.Context, rule models.Rule) error
}

type vectorWriter interface {
	MissingVectors(ctx context.Context) ([]models.Rule, error)
	SetVector(ctx context.Context, id int64, vec []float32) error
}

type seedFile struct {
	Rules []models.Rule `yaml:"rules"`
}

// loadSeed reads and validates a seed file. One bad rule rejects the file.
func loadSeed(path string) ([]models.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if len(seed.Rules) == 0 {
		return nil, fmt.Errorf("seed file %s has no rules", path)
	}

	var errs []error
	ids := map[int64]string{}
	for i, r := range seed.Rules {
		where := fmt.Sprintf("rule %d (%q)", i+1, r.Title)
		if r.ID <= 0 {
			errs = append(errs, fmt.Errorf("%s: id must be positive", where))
		} else if prev, dup := ids[r.ID]; dup {
			errs = append(errs, fmt.Errorf("%s: id %d already used by %q", where, r.ID, prev))
		}
		ids[r.ID] = r.Title
		if r.Language == "" || r.Title == "" {
			errs = append(errs, fmt.Errorf("%s: language and title are required", where))
		}
		switch r.PracticeType {
		case "", models.PracticeGood, models.PracticeBad:
		default:
			errs = append(errs, fmt.Errorf("%s: practice_type must be good or bad, got %q", where, r.PracticeType))
		}
		if r.CodePattern != "" {
			if _, err := service.CompileRulePattern(r.CodePattern); err != nil {
				errs = append(errs, fmt.Errorf("%s: code_pattern does not compile: %w", where, err))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	return seed.Rules, nil
}

func seedRules(ctx context.Context, store ruleWriter, rules []models.Rule) error {
	for _, r := range rules {
		if err := store.Upsert(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// vectorizeRules embeds every rule without a vector. A failed rule is logged
// and skipped; the returned error reports how many failed.
func vectorizeRules(ctx context.Context, store vectorWriter, embedder service.Embedder, logger *zap.Logger) (int, error) {
	log := logger.Named("vectorize")
	rules, err := store.MissingVectors(ctx)
	if err != nil {
		return 0, err
	}
	log.Info("rules to vectorize", zap.Int("count", len(rules)))

	done, failed := 0, 0
	for _, r := range rules {
		vec, err := embedder.Embed(ctx, r.EmbeddingText())
		if err == nil {
			err = store.SetVector(ctx, r.ID, vec)
		}
		if err != nil {
			failed++
			log.Warn("rule not vectorized", zap.Int64("id", r.ID), zap.String("title", r.Title), zap.Error(err))
			continue
		}
		done++
	}
	if failed > 0 {
		return done, fmt.Errorf("%d of %d rule(s) could not be vectorized", failed, len(rules))
	}
	return done, nil
}
