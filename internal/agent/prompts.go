package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nestquery/nestquery/internal/query"
)

const sqlSystemPrompt = "You are an expert SQL query generator for a student accommodation database. " +
	"Return exactly one PostgreSQL SELECT statement and nothing else."

const sqlPromptTemplate = `Database Schema:
%s
User Query: %s
User Preferences: %s

Generate a SAFE SQL query to find relevant accommodations. Rules:
1. Always include WHERE available = true
2. Use ORDER BY for logical sorting (rent for budget queries, distance for location queries, etc.)
3. Add appropriate LIMIT (usually 5-10 results)
4. Only use SELECT statements - no DELETE, UPDATE, INSERT, DROP, ALTER
5. Be flexible with user language (PG means paying guest)

SQL Query:`

const responseSystemPrompt = "You are a helpful student accommodation assistant."

const responsePromptTemplate = `Based on the user's query and the search results, provide a natural, conversational response.

User Query: %s
Search Results: %s
User Preferences: %s

Provide a helpful response that:
1. Directly addresses the user's question
2. Summarizes the best options found
3. Highlights key features (rent, location, amenities)
4. Suggests next steps if appropriate
5. Uses friendly, conversational tone
%s
Response:`

const noResultsInstruction = `
The search returned no matching accommodations. Say clearly that nothing matched,
then suggest concrete alternatives such as raising the budget, trying a nearby area
or a different room type.
`

func buildSQLPrompt(schema, userQuery, formattedPrefs string) string {
	return fmt.Sprintf(sqlPromptTemplate, schema, strings.TrimSpace(userQuery), formattedPrefs)
}

func buildResponsePrompt(userQuery string, rows []query.Row, formattedPrefs string) (string, error) {
	if rows == nil {
		rows = []query.Row{}
	}
	encoded, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode search results: %w", err)
	}
	extra := ""
	if len(rows) == 0 {
		extra = noResultsInstruction
	}
	return fmt.Sprintf(responsePromptTemplate, strings.TrimSpace(userQuery), string(encoded), formattedPrefs, extra), nil
}
