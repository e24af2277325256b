package agent

import (
	"context"

	"github.com/nestquery/nestquery/internal/llm"
	"github.com/nestquery/nestquery/internal/query"
)

const (
	StageGenerateSQL    = "generate_sql"
	StageExecute        = "execute"
	StageFormatResponse = "format_response"
)

// GenerateSQL asks the model for a statement answering userQuery against
// schema. The raw completion text is returned untouched.
func GenerateSQL(ctx context.Context, completer llm.Completer, schema, userQuery, formattedPrefs string) (string, error) {
	completion, err := completer.Complete(ctx, llm.Prompt{
		System: sqlSystemPrompt,
		User:   buildSQLPrompt(schema, userQuery, formattedPrefs),
	})
	if err != nil {
		return "", &GenerationError{Stage: StageGenerateSQL, Err: err}
	}
	return completion.Text, nil
}

// FormatResponse asks the model to describe rows to the user. An empty rows
// slice still produces a reply that says nothing matched.
func FormatResponse(ctx context.Context, completer llm.Completer, userQuery string, rows []query.Row, formattedPrefs string) (string, error) {
	prompt, err := buildResponsePrompt(userQuery, rows, formattedPrefs)
	if err != nil {
		return "", &GenerationError{Stage: StageFormatResponse, Err: err}
	}
	completion, err := completer.Complete(ctx, llm.Prompt{System: responseSystemPrompt, User: prompt})
	if err != nil {
		return "", &GenerationError{Stage: StageFormatResponse, Err: err}
	}
	return completion.Text, nil
}
