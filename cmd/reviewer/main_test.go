package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReviewerExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"unsupported extension", []string{"notes.txt"}, 2},
		{"missing file", []string{filepath.Join(t.TempDir(), "missing.sql")}, 1},
		{"no arguments", []string{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cmd := newRootCmd(&out)
			cmd.SetArgs(tt.args)
			cmd.SetOut(&out)
			cmd.SetErr(&out)

			err := cmd.ExecuteContext(context.Background())
			assert.Error(t, err)
			assert.Equal(t, tt.code, exitCode(err))
		})
	}
}
