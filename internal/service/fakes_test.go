package service

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/ahmednasr/mapping-assistant/internal/models"
)

func TestMain(m *testing.M) {
	// regexp2 keeps a shared clock goroutine alive briefly after timed matches.
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("github.com/dlclark/regexp2.runClock"))
}

// fakeLLM replays canned replies in order; the last one repeats.
type fakeLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []Prompt
}

func (f *fakeLLM) GenerateResponse(_ context.Context, p Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", nil
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}

// fakeRules serves fixed rule sets and counts how often it was opened and closed.
type fakeRules struct {
	regex     []models.Rule
	vector    []models.Rule
	regexErr  error
	vectorErr error
	openErr   error
	opened    int
	closed    int
}

func (f *fakeRules) store() RuleStore {
	return RuleStoreFunc(func(context.Context) (RuleReader, error) {
		if f.openErr != nil {
			return nil, f.openErr
		}
		f.opened++
		return f, nil
	})
}

func (f *fakeRules) RegexRules(context.Context, string) ([]models.Rule, error) {
	return f.regex, f.regexErr
}

func (f *fakeRules) VectorRules(context.Context, string) ([]models.Rule, error) {
	return f.vector, f.vectorErr
}

func (f *fakeRules) Close() error {
	f.closed++
	return nil
}

// memMappings is an in-memory MappingStore.
type memMappings struct {
	set models.MappingSet
	err error
}

func newMemMappings() *memMappings { return &memMappings{set: models.MappingSet{}} }

func (m *memMappings) All() models.MappingSet { return m.set.Clone() }

func (m *memMappings) Set(field string, v models.MappingValue) error {
	return m.Merge(models.MappingSet{field: v})
}

func (m *memMappings) Merge(update models.MappingSet) error {
	if m.err != nil {
		return m.err
	}
	for k, v := range update {
		m.set[k] = v
	}
	return nil
}

func (m *memMappings) Clear() error {
	m.set = models.MappingSet{}
	return m.err
}

type staticContext string

func (s staticContext) BuildMappingContext() string { return string(s) }
