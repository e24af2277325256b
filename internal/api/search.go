package api

import (
	"errors"
	"net/http"

	"github.com/nestquery/nestquery/internal/agent"
	"github.com/nestquery/nestquery/internal/auth"
	"github.com/nestquery/nestquery/internal/observability"
	"github.com/nestquery/nestquery/internal/preferences"
)

type searchRequest struct {
	Query       string                  `json:"query"`
	Preferences preferences.Preferences `json:"preferences"`
}

type chatRequest struct {
	SessionID   string                  `json:"session_id"`
	Query       string                  `json:"query"`
	Preferences preferences.Preferences `json:"preferences"`
}

type chatResponse struct {
	agent.Response
	SessionID     string                  `json:"session_id"`
	Memory        preferences.Preferences `json:"memory"`
	MemorySummary string                  `json:"memory_summary"`
}

type sessionResponse struct {
	SessionID     string                  `json:"session_id"`
	Memory        preferences.Preferences `json:"memory"`
	MemorySummary string                  `json:"memory_summary"`
}

// handleSearch answers with the agent's record. Pipeline failures are
// reported inside the record with status 200.
func handleSearch(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Agent == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "AGENT_NOT_CONFIGURED", "search agent is not configured", false, nil)
		return
	}
	var request searchRequest
	if !decodeJSON(w, r, &request, "search") {
		return
	}
	resp := deps.Agent.Process(r.Context(), agent.Request{Query: request.Query, Preferences: request.Preferences})
	writeJSON(w, http.StatusOK, resp)
}

// handleChat is search with memory: preferences mentioned in earlier turns of
// the same session are merged into the request and remembered afterwards.
func handleChat(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Agent == nil || deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "AGENT_NOT_CONFIGURED", "chat requires the search agent and session store", false, nil)
		return
	}
	var request chatRequest
	if !decodeJSON(w, r, &request, "chat") {
		return
	}
	sessionID, err := preferences.NormalizeSessionID(request.SessionID)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_SESSION_ID", err.Error(), false, nil)
		return
	}
	subject := auth.SubjectFromContext(r.Context())

	remembered, _ := deps.Sessions.Load(subject, sessionID)
	for key, value := range request.Preferences {
		remembered[key] = value
	}
	memory := preferences.Extract(request.Query, remembered)
	deps.Sessions.Save(subject, sessionID, memory)
	observability.SetActiveSessions(deps.Sessions.Len())

	resp := deps.Agent.Process(r.Context(), agent.Request{
		Query:       preferences.Enrich(request.Query, remembered),
		Preferences: memory,
	})
	resp.Query = request.Query

	writeJSON(w, http.StatusOK, chatResponse{
		Response:      resp,
		SessionID:     sessionID,
		Memory:        memory,
		MemorySummary: preferences.Summary(memory),
	})
}

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromPath(deps, w, r)
	if !ok {
		return
	}
	memory, found := deps.Sessions.Load(auth.SubjectFromContext(r.Context()), sessionID)
	if !found {
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found or expired", false, map[string]any{"session_id": sessionID})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:     sessionID,
		Memory:        memory,
		MemorySummary: preferences.Summary(memory),
	})
}

func handleDeleteSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromPath(deps, w, r)
	if !ok {
		return
	}
	if !deps.Sessions.Forget(auth.SubjectFromContext(r.Context()), sessionID) {
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found or expired", false, map[string]any{"session_id": sessionID})
		return
	}
	observability.SetActiveSessions(deps.Sessions.Len())
	w.WriteHeader(http.StatusNoContent)
}

func sessionIDFromPath(deps Dependencies, w http.ResponseWriter, r *http.Request) (string, bool) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session store is not configured", false, nil)
		return "", false
	}
	raw := r.PathValue("id")
	if raw == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_SESSION_ID", "session id is required", false, nil)
		return "", false
	}
	sessionID, err := preferences.NormalizeSessionID(raw)
	if errors.Is(err, preferences.ErrInvalidSessionID) {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_SESSION_ID", err.Error(), false, nil)
		return "", false
	}
	return sessionID, true
}
