// Package main implements spiralctl, the command-line client for the
// spiralmind HTTP API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the spiralmind HTTP server
	serverURL string
	// timeout bounds each request; chat and ask may wait on external lookups
	timeout time.Duration
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "spiralctl",
	Short: "CLI for the spiralmind concept daemon",
	Long: `spiralctl talks to a running spiralmind HTTP server.
It can chat interactively, teach and recall concepts, and check server health.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:9191", "spiralmind server URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Second, "request timeout")
	rootCmd.AddCommand(chatCmd, askCmd, learnCmd, recallCmd, relatedCmd, healthCmd)
}

// The response types mirror internal/http.

type chatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Response  string `json:"response"`
	Kind      string `json:"kind"`
	Concept   string `json:"concept,omitempty"`
	SessionID string `json:"session_id"`
}

type learnRequest struct {
	Concept     string `json:"concept"`
	Explanation string `json:"explanation"`
}

type learnResponse struct {
	Concept   string `json:"concept"`
	Persisted bool   `json:"persisted"`
}

type recallResponse struct {
	Concept      string   `json:"concept"`
	Answer       string   `json:"answer"`
	Explanations []string `json:"explanations"`
}

type relatedResponse struct {
	Concept string   `json:"concept"`
	Related []string `json:"related"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Concepts int    `json:"concepts"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// StatusError is a non-2xx reply from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
}

// doJSON sends body (if non-nil) and decodes a 2xx reply into out.
func doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	endpoint := strings.TrimRight(serverURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if readErr != nil {
			return &StatusError{Code: resp.StatusCode, Message: readErr.Error()}
		}
		var e errorResponse
		if json.Unmarshal(raw, &e) == nil && e.Message != "" {
			return &StatusError{Code: resp.StatusCode, Message: e.Message}
		}
		return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func conceptPath(name string, suffix string) string {
	return "/api/v1/concepts/" + url.PathEscape(strings.TrimSpace(name)) + suffix
}
