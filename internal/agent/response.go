package agent

import (
	"github.com/nestquery/nestquery/internal/preferences"
	"github.com/nestquery/nestquery/internal/query"
)

const (
	TypeAccommodationSearch = "accommodation_search"
	TypeError               = "error"

	// MaxAccommodations caps the rows returned to callers and shown to the model.
	MaxAccommodations = 5
)

type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Response is the record returned for every processed query, successful or
// not.
type Response struct {
	Type           string                  `json:"type"`
	Query          string                  `json:"query"`
	SQLGenerated   string                  `json:"sql_generated"`
	ResultsCount   int                     `json:"results_count"`
	Accommodations []query.Row             `json:"accommodations"`
	Response       string                  `json:"response"`
	Preferences    preferences.Preferences `json:"preferences"`
	Error          *ErrorDetail            `json:"error,omitempty"`
}

type AssembleInput struct {
	Query       string
	SQL         string
	Rows        []query.Row
	Text        string
	Preferences preferences.Preferences
	TopN        int
}

// Assemble builds the success record. ResultsCount is the full row count;
// Accommodations holds at most TopN rows.
func Assemble(in AssembleInput) Response {
	return Response{
		Type:           TypeAccommodationSearch,
		Query:          in.Query,
		SQLGenerated:   in.SQL,
		ResultsCount:   len(in.Rows),
		Accommodations: topRows(in.Rows, in.TopN),
		Response:       in.Text,
		Preferences:    echoPreferences(in.Preferences),
	}
}

// Degraded builds the record for a failed request. sqlText is whatever SQL
// the pipeline had produced before failing, possibly empty.
func Degraded(userQuery, sqlText string, prefs preferences.Preferences, err error) Response {
	kind := Kind(err)
	return Response{
		Type:           TypeError,
		Query:          userQuery,
		SQLGenerated:   sqlText,
		ResultsCount:   0,
		Accommodations: []query.Row{},
		Response:       FallbackMessage(kind),
		Preferences:    echoPreferences(prefs),
		Error:          &ErrorDetail{Kind: kind, Message: err.Error()},
	}
}

func topRows(rows []query.Row, n int) []query.Row {
	if n <= 0 || n > MaxAccommodations {
		n = MaxAccommodations
	}
	if len(rows) < n {
		n = len(rows)
	}
	out := make([]query.Row, n)
	copy(out, rows[:n])
	return out
}

func echoPreferences(prefs preferences.Preferences) preferences.Preferences {
	if prefs == nil {
		return preferences.Preferences{}
	}
	return prefs
}
