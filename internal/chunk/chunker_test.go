package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitBlocks(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Chunk
	}{
		{name: "empty input", in: "", want: nil},
		{name: "only blank lines", in: "\n   \n\t\n", want: nil},
		{
			name: "single block",
			in:   "df = spark.read.csv(path)\ndf.show()",
			want: []Chunk{{Text: "df = spark.read.csv(path)\ndf.show()", StartLine: 1}},
		},
		{
			name: "blocks separated by blank lines",
			in:   "\nimport x\n\n\ndef f():\n    return 1\n  \ny = f()\n",
			want: []Chunk{
				{Text: "import x", StartLine: 2},
				{Text: "def f():\n    return 1", StartLine: 5},
				{Text: "y = f()", StartLine: 8},
			},
		},
		{
			name: "crlf line endings",
			in:   "a = 1\r\nb = 2\r\n\r\nc = 3",
			want: []Chunk{
				{Text: "a = 1\nb = 2", StartLine: 1},
				{Text: "c = 3", StartLine: 4},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitBlocks(tt.in))
		})
	}
}

func TestSplitBlocks_ChunksMatchSourceLines(t *testing.T) {
	src := "x = 1\ny = 2\n\n\n# comment\nz = x + y\n\nprint(z)\n"
	lines := strings.Split(src, "\n")

	chunks := SplitBlocks(src)
	require.Len(t, chunks, 3)

	covered := 0
	for _, c := range chunks {
		chunkLines := strings.Split(c.Text, "\n")
		for i, l := range chunkLines {
			assert.Equal(t, lines[c.StartLine-1+i], l)
			assert.NotEmpty(t, strings.TrimSpace(l), "chunk must not contain blank lines")
		}
		covered += len(chunkLines)
	}

	nonBlank := 0
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			nonBlank++
		}
	}
	assert.Equal(t, nonBlank, covered)
}
