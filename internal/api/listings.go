package api

import (
	"net/http"

	"github.com/nestquery/nestquery/internal/listings"
	"github.com/nestquery/nestquery/internal/preferences"
	"github.com/nestquery/nestquery/internal/recommend"
)

type recommendationsRequest struct {
	Preferences preferences.Preferences `json:"preferences"`
	Limit       int                     `json:"limit"`
}

type recommendationsResponse struct {
	Recommendations []recommend.Recommendation `json:"recommendations"`
	Count           int                        `json:"count"`
	Candidates      int                        `json:"candidates"`
	MemorySummary   string                     `json:"memory_summary"`
}

func handleRecommendations(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Listings == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "LISTINGS_NOT_CONFIGURED", "listings source is not configured", false, nil)
		return
	}
	var request recommendationsRequest
	if !decodeJSON(w, r, &request, "recommendations") {
		return
	}
	if request.Limit < 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must not be negative", false, nil)
		return
	}

	candidates, err := deps.Listings.ListAvailable(r.Context(), 0)
	if err != nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "LISTINGS_UNAVAILABLE", "failed to load listings", true, map[string]any{"details": err.Error()})
		return
	}
	ranked := recommend.Rank(candidates, request.Preferences, request.Limit)
	writeJSON(w, http.StatusOK, recommendationsResponse{
		Recommendations: ranked,
		Count:           len(ranked),
		Candidates:      len(candidates),
		MemorySummary:   preferences.Summary(request.Preferences),
	})
}

func handleSchema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"table":       listings.TableName,
		"columns":     listings.Columns,
		"description": listings.SchemaDescription(),
	})
}

func handlePublishSnapshot(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Publisher == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SNAPSHOTS_NOT_CONFIGURED", "snapshot publishing requires object storage", false, nil)
		return
	}
	info, err := deps.Publisher.Publish(r.Context())
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.ErrorContext(r.Context(), "snapshot publish failed", "error", err)
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "SNAPSHOT_PUBLISH_FAILED", "failed to publish listings snapshot", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, info)
}
