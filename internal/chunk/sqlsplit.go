package chunk

import (
	"errors"
	"strings"
)

var (
	errUnterminatedQuote   = errors.New("unterminated quoted string")
	errUnterminatedComment = errors.New("unterminated block comment")
)

// splitStatements cuts SQL text after every top-level ';'. Quoted strings,
// quoted identifiers and comments are skipped over, so a ';' inside them does
// not end a statement. Whitespace-only pieces are dropped. Each statement
// keeps the comments and leading whitespace that precede it.
func splitStatements(sql string) ([]string, error) {
	var (
		out   []string
		start int
	)
	emit := func(end int) {
		if s := sql[start:end]; strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
		start = end
	}

	for i := 0; i < len(sql); i++ {
		switch c := sql[i]; {
		case c == '\'' || c == '"' || c == '`':
			end := closingQuote(sql, i)
			if end < 0 {
				return nil, errUnterminatedQuote
			}
			i = end
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			nl := strings.IndexByte(sql[i:], '\n')
			if nl < 0 {
				i = len(sql)
			} else {
				i += nl
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return nil, errUnterminatedComment
			}
			i += end + 3
		case c == ';':
			emit(i + 1)
		}
	}
	emit(len(sql))
	return out, nil
}

// closingQuote returns the index of the quote closing the one at open.
// A doubled quote character is an escaped quote; so is a backslash escape
// inside single-quoted strings.
func closingQuote(sql string, open int) int {
	q := sql[open]
	for i := open + 1; i < len(sql); i++ {
		switch sql[i] {
		case '\\':
			if q == '\'' {
				i++
			}
		case q:
			if i+1 < len(sql) && sql[i+1] == q {
				i++
				continue
			}
			return i
		}
	}
	return -1
}

// naiveSplit is the fallback when the text cannot be tokenized.
func naiveSplit(sql string) []string {
	var out []string
	for _, s := range strings.Split(sql, ";") {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// stripComments removes line and block comments outside of quotes, then
// drops the lines that became empty.
func stripComments(stmt string) string {
	var b strings.Builder
	for i := 0; i < len(stmt); i++ {
		c := stmt[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := closingQuote(stmt, i)
			if end < 0 {
				b.WriteString(stmt[i:])
				i = len(stmt)
				continue
			}
			b.WriteString(stmt[i : end+1])
			i = end
		case c == '-' && i+1 < len(stmt) && stmt[i+1] == '-':
			nl := strings.IndexByte(stmt[i:], '\n')
			if nl < 0 {
				i = len(stmt)
				continue
			}
			i += nl - 1
		case c == '/' && i+1 < len(stmt) && stmt[i+1] == '*':
			end := strings.Index(stmt[i+2:], "*/")
			if end < 0 {
				i = len(stmt)
				continue
			}
			i += end + 3
		default:
			b.WriteByte(c)
		}
	}

	var kept []string
	for _, line := range strings.Split(b.String(), "\n") {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, strings.TrimRight(line, " \t\r"))
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
