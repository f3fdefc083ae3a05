// Package mirror keeps the local store in step with the household's shared
// copy on the merge server.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Remote is the shared key/value copy. Fetch returns every key the remote
// holds; Push merges values into it.
type Remote interface {
	Fetch(ctx context.Context) (map[string]string, error)
	Push(ctx context.Context, values map[string]string) error
}

const (
	dataPath       = "/api/data"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// HTTPRemote talks to the merge endpoint served by the api package.
type HTTPRemote struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRemote(baseURL string) *HTTPRemote {
	return &HTTPRemote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

func (r *HTTPRemote) Fetch(ctx context.Context) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+dataPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch remote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("fetch remote", resp)
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode remote data: %w", err)
	}
	return flatten(raw), nil
}

func (r *HTTPRemote) Push(ctx context.Context, values map[string]string) error {
	body, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode push: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+dataPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("push remote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError("push remote", resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// flatten turns the remote's values into record strings. Values are
// normally JSON strings holding serialized records; anything else written
// by another client is kept as its raw JSON text. null counts as absent.
func flatten(raw map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		if text := string(v); text != "null" {
			out[k] = text
		}
	}
	return out
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("%s: status %d", op, resp.StatusCode)
}
