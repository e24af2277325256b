package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// Denylist is the fixed set of keywords that make a statement unsafe.
var Denylist = []string{"DELETE", "DROP", "UPDATE", "INSERT", "ALTER", "TRUNCATE", "CREATE"}

const (
	ReasonDenylisted     = "denylisted_keyword"
	ReasonNotSelect      = "not_select"
	ReasonComment        = "comment"
	ReasonMultiStatement = "multiple_statements"
)

// UnsafeSQLError reports a statement rejected by Check.
type UnsafeSQLError struct {
	SQL     string
	Keyword string
	Reason  string
}

func (e *UnsafeSQLError) Error() string {
	switch e.Reason {
	case ReasonDenylisted:
		return fmt.Sprintf("unsafe SQL: forbidden keyword %s", e.Keyword)
	case ReasonNotSelect:
		return "unsafe SQL: statement must start with SELECT"
	case ReasonComment:
		return "unsafe SQL: comments are not allowed"
	case ReasonMultiStatement:
		return "unsafe SQL: only a single statement is allowed"
	default:
		return "unsafe SQL"
	}
}

// ValidatedSQL is SQL that passed Check. The zero value is empty and is
// refused by executors.
type ValidatedSQL struct {
	text string
}

func (v ValidatedSQL) String() string { return v.text }

func (v ValidatedSQL) IsZero() bool { return v.text == "" }

var (
	denylistPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(Denylist, "|") + `)\b`)
	selectPrefix    = regexp.MustCompile(`(?i)^select\b`)
)

// Check applies the read-only policy: the statement must start with SELECT,
// must not mention any denylisted keyword as a word, and must be a single
// statement without comments. This is keyword matching, not parsing, so it
// narrows the attack surface without proving a statement read-only;
// executors also run it inside a read-only transaction.
func Check(sqlText string) (ValidatedSQL, error) {
	trimmed := strings.TrimSpace(sqlText)
	if match := denylistPattern.FindString(trimmed); match != "" {
		return ValidatedSQL{}, &UnsafeSQLError{SQL: trimmed, Keyword: strings.ToUpper(match), Reason: ReasonDenylisted}
	}
	if !selectPrefix.MatchString(trimmed) {
		return ValidatedSQL{}, &UnsafeSQLError{SQL: trimmed, Reason: ReasonNotSelect}
	}
	if strings.Contains(trimmed, "--") || strings.Contains(trimmed, "/*") {
		return ValidatedSQL{}, &UnsafeSQLError{SQL: trimmed, Reason: ReasonComment}
	}
	if hasTrailingStatement(trimmed) {
		return ValidatedSQL{}, &UnsafeSQLError{SQL: trimmed, Reason: ReasonMultiStatement}
	}
	return ValidatedSQL{text: trimmed}, nil
}

// hasTrailingStatement reports whether anything but whitespace or further
// semicolons follows the first semicolon outside a string literal.
func hasTrailingStatement(sqlText string) bool {
	inQuote := false
	for i := 0; i < len(sqlText); i++ {
		switch sqlText[i] {
		case '\'':
			inQuote = !inQuote
		case ';':
			if inQuote {
				continue
			}
			rest := strings.TrimSpace(strings.ReplaceAll(sqlText[i+1:], ";", ""))
			return rest != ""
		}
	}
	return false
}
