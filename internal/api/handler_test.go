package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nestquery/nestquery/internal/agent"
	"github.com/nestquery/nestquery/internal/auth"
	"github.com/nestquery/nestquery/internal/config"
	"github.com/nestquery/nestquery/internal/listings"
	"github.com/nestquery/nestquery/internal/preferences"
)

func TestHealthEndpoint(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("X-Trace-ID") == "" {
		t.Fatal("expected trace id header")
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{
		Readiness: Named("database", func(context.Context) error {
			return errors.New("dependency down")
		}),
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "NOT_READY" || body["message"] != "database: dependency down" {
		t.Fatalf("body = %#v", body)
	}
	if body["retryable"] != true {
		t.Fatalf("retryable = %v", body["retryable"])
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"NESTQUERY_AUTH_REQUIRED": "true"})
	validator, err := auth.NewStaticAPIKeyValidator("k1:student-1:searcher")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}
	h := NewHandler(cfg, Dependencies{AuthMiddleware: auth.Middleware(nil, validator)})

	unauthResp := httptest.NewRecorder()
	h.ServeHTTP(unauthResp, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	if unauthResp.Code != http.StatusUnauthorized {
		t.Fatalf("unauth status = %d", unauthResp.Code)
	}

	authReq := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
	authReq.Header.Set("X-API-Key", "k1")
	authResp := httptest.NewRecorder()
	h.ServeHTTP(authResp, authReq)
	if authResp.Code != http.StatusOK {
		t.Fatalf("auth status = %d", authResp.Code)
	}
	body := decodeBody(t, authResp)
	if body["table"] != listings.TableName {
		t.Fatalf("table = %v", body["table"])
	}
	if !strings.Contains(body["description"].(string), "distance_from_college_km") {
		t.Fatalf("description = %v", body["description"])
	}
}

func TestAuthRequiredWithoutMiddlewareFailsClosed(t *testing.T) {
	h := NewHandler(loadConfig(t, map[string]string{"NESTQUERY_AUTH_REQUIRED": "true"}), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestSearchReturnsAgentRecord(t *testing.T) {
	searcher := &fakeSearcher{}
	h := NewHandler(loadConfig(t, nil), Dependencies{Agent: searcher})

	rr := postJSON(h, "/v1/search", `{"query":"find me cheap PG near college","preferences":{"budget":8000}}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["type"] != agent.TypeAccommodationSearch {
		t.Fatalf("type = %v", body["type"])
	}
	if !strings.HasPrefix(body["sql_generated"].(string), "SELECT") {
		t.Fatalf("sql_generated = %v", body["sql_generated"])
	}
	requests := searcher.all()
	if len(requests) != 1 || requests[0].Query != "find me cheap PG near college" {
		t.Fatalf("requests = %#v", requests)
	}
	if budget, _ := requests[0].Preferences.Int(preferences.KeyBudget); budget != 8000 {
		t.Fatalf("budget = %d", budget)
	}
}

func TestSearchDegradedRecordIsStill200(t *testing.T) {
	searcher := &fakeSearcher{respond: func(req agent.Request) agent.Response {
		return agent.Degraded(req.Query, "DROP TABLE listings;", req.Preferences, &agent.InputError{Reason: "x"})
	}}
	h := NewHandler(loadConfig(t, nil), Dependencies{Agent: searcher})

	rr := postJSON(h, "/v1/search", `{"query":"drop it"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["type"] != agent.TypeError {
		t.Fatalf("type = %v", body["type"])
	}
	if accommodations, ok := body["accommodations"].([]any); !ok || len(accommodations) != 0 {
		t.Fatalf("accommodations = %#v", body["accommodations"])
	}
}

func TestSearchRejectsMalformedJSON(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{Agent: &fakeSearcher{}})
	for _, payload := range []string{`{"query":`, `{"query":"x","sql":"DROP TABLE accommodations"}`} {
		rr := postJSON(h, "/v1/search", payload, "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d for %s", rr.Code, payload)
		}
		if body := decodeBody(t, rr); body["error_code"] != "INVALID_JSON" {
			t.Fatalf("error_code = %v", body["error_code"])
		}
	}
}

func TestSearchWithoutAgentIsNotImplemented(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	rr := postJSON(h, "/v1/search", `{"query":"pg"}`, "")
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestChatRemembersPreferencesAcrossTurns(t *testing.T) {
	searcher := &fakeSearcher{}
	sessions := preferences.NewSessionStore(time.Minute, 0)
	h := NewHandler(loadConfig(t, nil), Dependencies{Agent: searcher, Sessions: sessions})

	first := postJSON(h, "/v1/chat", `{"query":"pg in powai under 9000"}`, "")
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", first.Code, first.Body.String())
	}
	firstBody := decodeBody(t, first)
	sessionID, _ := firstBody["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("session_id missing: %#v", firstBody)
	}
	memory := firstBody["memory"].(map[string]any)
	if memory[preferences.KeyPreferredLocation] != "Powai" || memory[preferences.KeyRoomType] != "pg" {
		t.Fatalf("memory = %#v", memory)
	}
	if !strings.Contains(firstBody["memory_summary"].(string), "Powai") {
		t.Fatalf("memory_summary = %v", firstBody["memory_summary"])
	}

	second := postJSON(h, "/v1/chat", `{"session_id":"`+sessionID+`","query":"anything furnished?"}`, "")
	secondBody := decodeBody(t, second)
	if secondBody["query"] != "anything furnished?" {
		t.Fatalf("query = %v", secondBody["query"])
	}
	requests := searcher.all()
	if len(requests) != 2 {
		t.Fatalf("len(requests) = %d", len(requests))
	}
	followUp := requests[1]
	if !strings.Contains(followUp.Query, "Powai") {
		t.Fatalf("follow-up query not enriched: %q", followUp.Query)
	}
	if furnished, ok := followUp.Preferences.Bool(preferences.KeyFurnished); !ok || !furnished {
		t.Fatalf("follow-up preferences = %#v", followUp.Preferences)
	}
	if location, _ := followUp.Preferences.String(preferences.KeyPreferredLocation); location != "Powai" {
		t.Fatalf("location = %q", location)
	}

	getResp := httptest.NewRecorder()
	h.ServeHTTP(getResp, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sessionID, nil))
	if getResp.Code != http.StatusOK {
		t.Fatalf("get session status = %d", getResp.Code)
	}

	deleteResp := httptest.NewRecorder()
	h.ServeHTTP(deleteResp, httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+sessionID, nil))
	if deleteResp.Code != http.StatusNoContent {
		t.Fatalf("delete session status = %d", deleteResp.Code)
	}
	missingResp := httptest.NewRecorder()
	h.ServeHTTP(missingResp, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sessionID, nil))
	if missingResp.Code != http.StatusNotFound {
		t.Fatalf("deleted session status = %d", missingResp.Code)
	}
}

func TestSessionsAreScopedToSubject(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"NESTQUERY_AUTH_REQUIRED": "true"})
	validator, err := auth.NewStaticAPIKeyValidator("k1:student-1:searcher,k2:student-2:searcher")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}
	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Agent:          &fakeSearcher{},
		Sessions:       preferences.NewSessionStore(time.Minute, 0),
	})

	rr := postJSON(h, "/v1/chat", `{"query":"1bhk in koramangala"}`, "k1")
	sessionID := decodeBody(t, rr)["session_id"].(string)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sessionID, nil)
	req.Header.Set("X-API-Key", "k2")
	other := httptest.NewRecorder()
	h.ServeHTTP(other, req)
	if other.Code != http.StatusNotFound {
		t.Fatalf("other subject status = %d", other.Code)
	}
}

func TestChatRejectsInvalidSessionID(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{Agent: &fakeSearcher{}, Sessions: preferences.NewSessionStore(time.Minute, 0)})
	rr := postJSON(h, "/v1/chat", `{"session_id":"not-a-uuid","query":"pg"}`, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	getResp := httptest.NewRecorder()
	h.ServeHTTP(getResp, httptest.NewRequest(http.MethodGet, "/v1/sessions/not-a-uuid", nil))
	if getResp.Code != http.StatusBadRequest {
		t.Fatalf("get status = %d", getResp.Code)
	}
}

func TestRecommendationsRankAvailableListings(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{Listings: &fakeListings{rows: listings.SampleAccommodations()}})

	rr := postJSON(h, "/v1/recommendations", `{"preferences":{"budget":10000,"furnished":true},"limit":3}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	var body recommendationsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 3 || len(body.Recommendations) != 3 {
		t.Fatalf("count = %d", body.Count)
	}
	for i := 1; i < len(body.Recommendations); i++ {
		if body.Recommendations[i-1].Score < body.Recommendations[i].Score {
			t.Fatalf("recommendations not sorted: %+v", body.Recommendations)
		}
	}
	if body.Recommendations[0].Reason == "" {
		t.Fatal("expected a reason on the top recommendation")
	}
}

func TestRecommendationsReportListingFailure(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{Listings: &fakeListings{err: errors.New("db down")}})
	rr := postJSON(h, "/v1/recommendations", `{"preferences":{}}`, "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestPublishSnapshotRequiresOperator(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"NESTQUERY_AUTH_REQUIRED": "true"})
	validator, err := auth.NewStaticAPIKeyValidator("k1:student-1:searcher,k2:ops:operator")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}
	publisher := &fakePublisher{info: listings.SnapshotInfo{Key: "snapshots/accommodations/latest.parquet", RecordCount: 9}}
	h := NewHandler(cfg, Dependencies{AuthMiddleware: auth.Middleware(nil, validator), Publisher: publisher})

	forbidden := postJSON(h, "/v1/snapshots/publish", ``, "k1")
	if forbidden.Code != http.StatusForbidden {
		t.Fatalf("searcher status = %d", forbidden.Code)
	}
	if publisher.calls != 0 {
		t.Fatal("publisher should not run for searchers")
	}

	ok := postJSON(h, "/v1/snapshots/publish", ``, "k2")
	if ok.Code != http.StatusOK {
		t.Fatalf("operator status = %d, body=%s", ok.Code, ok.Body.String())
	}
	if body := decodeBody(t, ok); body["record_count"] != float64(9) {
		t.Fatalf("record_count = %v", body["record_count"])
	}
}

func TestCombineReadinessChecksStopsOnFirstFailure(t *testing.T) {
	order := make([]int, 0, 3)
	combined := CombineReadinessChecks(
		func(_ context.Context) error {
			order = append(order, 1)
			return nil
		},
		nil,
		func(_ context.Context) error {
			order = append(order, 2)
			return errors.New("boom")
		},
		func(_ context.Context) error {
			order = append(order, 3)
			return nil
		},
	)

	if err := combined(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("execution order = %#v", order)
	}
}

func TestReadinessChecksNameTheFailingDependency(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"NESTQUERY_AI_PROVIDER": "anthropic"})
	check := CombineReadinessChecks(
		Named("database", func(context.Context) error { return nil }),
		nil,
		Named("completion", CheckCompletionConfig(cfg)),
	)
	err := check(context.Background())
	if err == nil || !strings.Contains(err.Error(), "completion: anthropic api key") {
		t.Fatalf("readiness error = %v", err)
	}

	cfg = loadConfig(t, map[string]string{"ANTHROPIC_API_KEY": "sk-ant", "NESTQUERY_AI_PROVIDER": "anthropic"})
	if err := Named("completion", CheckCompletionConfig(cfg))(context.Background()); err != nil {
		t.Fatalf("readiness error = %v", err)
	}
}

type fakeSearcher struct {
	mu       sync.Mutex
	requests []agent.Request
	respond  func(agent.Request) agent.Response
}

func (f *fakeSearcher) Process(_ context.Context, req agent.Request) agent.Response {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(req)
	}
	return agent.Assemble(agent.AssembleInput{
		Query:       req.Query,
		SQL:         "SELECT * FROM accommodations WHERE available = true",
		Text:        "Here is what I found.",
		Preferences: req.Preferences,
	})
}

func (f *fakeSearcher) all() []agent.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]agent.Request(nil), f.requests...)
}

type fakeListings struct {
	rows []listings.Accommodation
	err  error
}

func (f *fakeListings) ListAvailable(_ context.Context, _ int) ([]listings.Accommodation, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]listings.Accommodation, 0, len(f.rows))
	for _, row := range f.rows {
		if row.Available {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakePublisher struct {
	info  listings.SnapshotInfo
	calls int
}

func (f *fakePublisher) Publish(context.Context) (listings.SnapshotInfo, error) {
	f.calls++
	return f.info, nil
}

func loadConfig(t *testing.T, env map[string]string) config.Config {
	t.Helper()
	cfg, err := config.Load("nestquery-api", mapLookup(env))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func postJSON(h http.Handler, path, payload, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
