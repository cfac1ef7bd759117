package service

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultLocalModel is the sentence-transformers model rules are vectorized with.
const DefaultLocalModel = "sentence-transformers/all-MiniLM-L6-v2"

// The text is read from stdin so no quoting of the input is needed.
const localEmbedScript = `
import sys
from sentence_transformers import SentenceTransformer

model = SentenceTransformer(sys.argv[1])
text = sys.stdin.read()
embedding = model.encode(text, convert_to_tensor=False)
print(",".join(map(str, embedding.tolist())))
`

// LocalEmbedder runs a sentence-transformers model through a local python3.
type LocalEmbedder struct {
	python string
	model  string
	logger *zap.Logger
}

// NewLocalEmbedder creates a new embedder using a local model. An empty model
// selects DefaultLocalModel.
func NewLocalEmbedder(model string, logger *zap.Logger) *LocalEmbedder {
	if model == "" {
		model = DefaultLocalModel
	}
	return &LocalEmbedder{python: "python3", model: model, logger: logger.Named("local-embedder")}
}

// Embed generates an embedding vector for a single input text
func (l *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	cmd := exec.CommandContext(ctx, l.python, "-c", localEmbedScript, l.model)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		l.logger.Error("python embedding failed", zap.Error(err), zap.String("stderr", stderr.String()))
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	vec, err := parseVector(stdout.String())
	if err != nil {
		return nil, err
	}
	l.logger.Debug("generated embedding", zap.Int("dims", len(vec)))
	return vec, nil
}

// parseVector reads a comma-separated list of floats.
func parseVector(out string) ([]float32, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, fmt.Errorf("empty embedding output")
	}
	values := strings.Split(out, ",")
	result := make([]float32, len(values))
	for i, v := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
		if err != nil {
			return nil, fmt.Errorf("failed to parse embedding value %q: %w", v, err)
		}
		result[i] = float32(f)
	}
	return result, nil
}
