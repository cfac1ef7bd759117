// Package chunk splits source files into reviewable units, each tagged with
// the 1-based line it starts on.
package chunk

import "strings"

// Chunk is a contiguous piece of a source file.
type Chunk struct {
	Text      string `json:"text"`
	StartLine int    `json:"start_line"`
}

// SplitBlocks groups consecutive non-blank lines into chunks. A line holding
// only whitespace ends the current chunk; it never belongs to one.
func SplitBlocks(text string) []Chunk {
	var (
		chunks  []Chunk
		current []string
		start   int
	)
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, Chunk{Text: strings.Join(current, "\n"), StartLine: start})
			current = nil
		}
	}

	for i, line := range splitLines(text) {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if len(current) == 0 {
			start = i + 1
		}
		current = append(current, line)
	}
	flush()
	return chunks
}

// splitLines breaks on \n, \r\n and \r, dropping the terminators.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
