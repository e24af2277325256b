// Package sqlguard turns raw completion text into SQL that is allowed to reach
// the database. Clean strips markdown and prose; Check applies the read-only
// policy and is the only way to obtain a ValidatedSQL.
package sqlguard

import (
	"regexp"
	"strings"
)

// EmptySQLError reports a completion that contained no statement.
type EmptySQLError struct {
	Raw string
}

func (e *EmptySQLError) Error() string {
	if strings.TrimSpace(e.Raw) == "" {
		return "model returned empty SQL"
	}
	return "no SQL statement found in model output"
}

// statementStart finds the first line that begins with a statement keyword,
// optionally behind an echoed "SQL Query:" label from the prompt.
var statementStart = regexp.MustCompile(`(?im)^[ \t]*(?:sql(?:[ \t]+query)?[ \t]*:[ \t]*)?(select|with|insert|update|delete|drop|alter|create|truncate)\b`)

var (
	sqlFence = regexp.MustCompile("(?i)```sql")

	// statementLead matches text that opens another statement.
	statementLead = regexp.MustCompile(`(?i)^(select|with|insert|update|delete|drop|alter|create|truncate)\b`)

	// sqlContinuation matches a line that carries on a statement after a
	// blank line rather than starting commentary.
	sqlContinuation = regexp.MustCompile(`(?i)^(?:(select|with|insert|update|delete|drop|alter|create|truncate|from|where|and|or|not|order|group|having|limit|offset|fetch|window|join|left|right|inner|outer|full|cross|union|intersect|except|case|when|then|else|end)\b|[(),;*])`)
)

// Clean extracts the SQL statement from model output. It is idempotent: an
// already clean statement is returned unchanged.
func Clean(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if fenced, ok := extractFenced(text); ok {
		text = fenced
	}

	loc := statementStart.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", &EmptySQLError{Raw: raw}
	}
	text = strings.TrimSpace(text[loc[2]:])
	// A dangling fence survives when the model never closed its code block.
	text = strings.TrimSpace(strings.TrimSuffix(text, "```"))
	text = cutTrailingProse(text)
	if text == "" {
		return "", &EmptySQLError{Raw: raw}
	}
	return text, nil
}

// extractFenced returns the body of the first fenced code block, preferring a
// block tagged sql. The info string after the opening fence is dropped.
func extractFenced(text string) (string, bool) {
	start := strings.Index(text, "```")
	if loc := sqlFence.FindStringIndex(text); loc != nil {
		start = loc[0]
	}
	if start == -1 {
		return "", false
	}
	body := text[start+3:]
	if newline := strings.IndexByte(body, '\n'); newline != -1 {
		info := strings.TrimSpace(body[:newline])
		if !strings.ContainsAny(info, " \t") || strings.EqualFold(info, "sql") {
			body = body[newline+1:]
		}
	} else {
		body = strings.TrimPrefix(body, "sql")
	}
	if end := strings.Index(body, "```"); end != -1 {
		body = body[:end]
	}
	return strings.TrimSpace(body), true
}

// cutTrailingProse drops commentary after the statement. It stops at a
// semicolon outside a string literal unless another statement follows, which
// is left for Check to reject, and at a blank line followed by text that does
// not continue the statement.
func cutTrailingProse(text string) string {
	inQuote := false
	for i := 0; i < len(text); i++ {
		switch c := text[i]; {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == ';':
			rest := strings.TrimLeft(text[i+1:], "; \t\r\n")
			if rest != "" && statementLead.MatchString(rest) {
				return text
			}
			return strings.TrimSpace(text[:i+1])
		case c == '\n':
			end := strings.IndexByte(text[i+1:], '\n')
			if end == -1 || strings.TrimSpace(text[i+1:i+1+end]) != "" {
				continue
			}
			next := strings.TrimSpace(text[i+1+end:])
			if next != "" && !sqlContinuation.MatchString(next) {
				return strings.TrimSpace(text[:i])
			}
		}
	}
	return text
}
