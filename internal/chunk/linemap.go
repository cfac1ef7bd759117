package chunk

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// MapStatements splits SQL into statements and attributes each one to the
// line its first keyword appears on in the original text.
//
// A cursor moves forward through the text as statements are placed, so a
// keyword repeated across statements resolves to successive occurrences.
// Statements made only of comments are skipped; statements that cannot be
// placed are logged and dropped. The returned chunk text has comments removed.
func MapStatements(sql string, logger *zap.Logger) []Chunk {
	if logger == nil {
		logger = zap.NewNop()
	}

	statements, err := splitStatements(sql)
	if err != nil {
		logger.Warn("could not tokenize SQL, falling back to simple split", zap.Error(err))
		statements = naiveSplit(sql)
	}

	lines := strings.Split(sql, "\n")
	var (
		chunks []Chunk
		cursor int
	)

	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		firstLine := firstSQLLine(stmt)
		if firstLine == "" {
			continue
		}
		keyword := strings.ToUpper(strings.Fields(firstLine)[0])

		pos, line, ok := locate(sql, lines, cursor, keyword)
		if !ok {
			logger.Warn("could not find line mapping for statement",
				zap.String("statement", truncate(firstLine, 50)))
			continue
		}

		chunks = append(chunks, Chunk{Text: stripComments(stmt), StartLine: line})
		if end := strings.IndexByte(sql[pos:], ';'); end >= 0 {
			cursor = pos + end + 1
		} else {
			cursor = pos + len(firstLine)
		}
		if cursor > len(sql) {
			cursor = len(sql)
		}
	}
	return chunks
}

// firstSQLLine returns the first line that is neither blank nor a line
// comment, with runs of whitespace collapsed.
func firstSQLLine(stmt string) string {
	for _, l := range strings.Split(stmt, "\n") {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "--") {
			continue
		}
		return whitespaceRun.ReplaceAllString(l, " ")
	}
	return ""
}

// locate finds the first whole-word, case-insensitive occurrence of keyword
// at or after cursor that sits at the start of a non-comment line.
func locate(sql string, lines []string, cursor int, keyword string) (pos, line int, ok bool) {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\b`)
	if err != nil {
		return 0, 0, false
	}
	for _, m := range re.FindAllStringIndex(sql[cursor:], -1) {
		pos = cursor + m[0]
		line = strings.Count(sql[:pos], "\n") + 1
		if line > len(lines) {
			continue
		}
		actual := strings.TrimSpace(lines[line-1])
		if actual == "" || strings.HasPrefix(actual, "--") {
			continue
		}
		normalized := whitespaceRun.ReplaceAllString(actual, " ")
		if strings.HasPrefix(strings.ToUpper(normalized), keyword) {
			return pos, line, true
		}
	}
	return 0, 0, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
