// Package nestqueryctl is the command-line client for the nestquery API.
package nestqueryctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// exitError carries the process exit code out of a cobra command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	stdout  io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	c := &client{stdout: stdout}
	var timeout time.Duration

	root := &cobra.Command{
		Use:           "nestqueryctl",
		Short:         "Command-line client for the nestquery accommodation search API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c.baseURL = strings.TrimRight(c.baseURL, "/")
			c.http = defaults.HTTPClient
			if c.http == nil {
				c.http = &http.Client{Timeout: timeout}
			}
		},
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&c.baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "nestquery API base URL")
	root.PersistentFlags().StringVar(&c.apiKey, "api-key", defaults.APIKey, "API key for authenticated requests")
	root.PersistentFlags().DurationVar(&timeout, "timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 30s)")

	root.AddCommand(
		c.simpleCmd("health", "Check that the API is running", http.MethodGet, "/v1/health"),
		c.simpleCmd("ready", "Check that the API dependencies are reachable", http.MethodGet, "/v1/ready"),
		c.simpleCmd("schema", "Show the table description used for SQL generation", http.MethodGet, "/v1/schema"),
		c.searchCmd(),
		c.chatCmd(),
		c.sessionCmd(),
		c.recommendCmd(),
		c.snapshotCmd(),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		var exit *exitError
		if errors.As(err, &exit) {
			return exit.code
		}
		return 2
	}
	return 0
}

func (c *client) simpleCmd(use, short, method, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.call(cmd.Context(), method, path, nil)
		},
	}
}

func (c *client) searchCmd() *cobra.Command {
	var prefs []string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Ask a one-off natural-language accommodation question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parsePreferences(prefs)
			if err != nil {
				return err
			}
			return c.call(cmd.Context(), http.MethodPost, "/v1/search", map[string]any{
				"query":       strings.Join(args, " "),
				"preferences": parsed,
			})
		},
	}
	cmd.Flags().StringArrayVar(&prefs, "pref", nil, "preference as key=value, repeatable (e.g. --pref budget=8000)")
	return cmd
}

func (c *client) chatCmd() *cobra.Command {
	var sessionID string
	var prefs []string
	cmd := &cobra.Command{
		Use:   "chat <query>",
		Short: "Search with remembered preferences; pass --session to continue a conversation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parsePreferences(prefs)
			if err != nil {
				return err
			}
			body := map[string]any{"query": strings.Join(args, " ")}
			if sessionID != "" {
				body["session_id"] = sessionID
			}
			if len(parsed) > 0 {
				body["preferences"] = parsed
			}
			return c.call(cmd.Context(), http.MethodPost, "/v1/chat", body)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id returned by a previous chat")
	cmd.Flags().StringArrayVar(&prefs, "pref", nil, "preference as key=value, repeatable")
	return cmd
}

func (c *client) sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or forget chat session memory",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <session-id>",
			Short: "Show remembered preferences",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.call(cmd.Context(), http.MethodGet, "/v1/sessions/"+args[0], nil)
			},
		},
		&cobra.Command{
			Use:   "forget <session-id>",
			Short: "Drop remembered preferences",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.call(cmd.Context(), http.MethodDelete, "/v1/sessions/"+args[0], nil)
			},
		},
	)
	return cmd
}

func (c *client) recommendCmd() *cobra.Command {
	var prefs []string
	var limit int
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Rank available listings against preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := parsePreferences(prefs)
			if err != nil {
				return err
			}
			return c.call(cmd.Context(), http.MethodPost, "/v1/recommendations", map[string]any{
				"preferences": parsed,
				"limit":       limit,
			})
		},
	}
	cmd.Flags().StringArrayVar(&prefs, "pref", nil, "preference as key=value, repeatable")
	cmd.Flags().IntVar(&limit, "limit", 5, "number of listings to return")
	return cmd
}

func (c *client) snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage the parquet listings snapshot",
	}
	cmd.AddCommand(c.simpleCmd("publish", "Publish available listings to object storage (operator role)", http.MethodPost, "/v1/snapshots/publish"))
	return cmd
}

func (c *client) call(ctx context.Context, method, path string, payload any) error {
	code, responseBody, err := c.do(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("request failed: %w", err)}
	}
	if code >= 400 {
		return &exitError{code: 1, err: fmt.Errorf("http %d: %s", code, strings.TrimSpace(string(responseBody)))}
	}
	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(c.stdout, pretty)
		return nil
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(c.stdout, string(responseBody))
	}
	return nil
}

func (c *client) do(ctx context.Context, method, url string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := strings.TrimSpace(c.apiKey); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// parsePreferences turns key=value pairs into typed preferences: integers and
// booleans are recognised, everything else stays a string.
func parsePreferences(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid preference %q: expected key=value", pair)
		}
		value = strings.TrimSpace(value)
		if n, err := strconv.Atoi(value); err == nil {
			out[key] = n
			continue
		}
		if b, err := strconv.ParseBool(value); err == nil {
			out[key] = b
			continue
		}
		out[key] = value
	}
	return out, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
