// Package e2e drives a running gateway over HTTP with godog scenarios.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"time"
)

// TestContext carries one scenario's HTTP state: the cookie jar standing in
// for a browser and the last response received.
type TestContext struct {
	BaseURL string

	client       *http.Client
	lastStatus   int
	lastBody     []byte
	lastHeaders  http.Header
	savedCookies []*http.Cookie
}

func NewTestContext() *TestContext {
	base := os.Getenv("BFF_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	tc := &TestContext{BaseURL: strings.TrimRight(base, "/")}
	tc.Reset()
	return tc
}

// Reset drops cookies and the last response between scenarios.
func (tc *TestContext) Reset() {
	jar, _ := cookiejar.New(nil)
	tc.client = &http.Client{Jar: jar, Timeout: 10 * time.Second}
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastHeaders = nil
	tc.savedCookies = nil
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) POSTWithHeaders(path string, body any, headers map[string]string) error {
	return tc.do(http.MethodPost, path, body, headers)
}

func (tc *TestContext) do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.lastStatus = resp.StatusCode
	tc.lastHeaders = resp.Header
	return nil
}

func (tc *TestContext) GetLastStatusCode() int { return tc.lastStatus }

func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }

func (tc *TestContext) GetLastHeader(name string) string { return tc.lastHeaders.Get(name) }

// GetResponseField walks a dotted path ("dependents.0.dependentId") through
// the last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	cur := doc
	for _, part := range strings.Split(field, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in response", field)
			}
			cur = v
		case []any:
			var idx int
			if _, err := fmt.Sscanf(part, "%d", &idx); err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", part, field)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("field %q not found in response", field)
		}
	}
	return cur, nil
}

// SaveCookies remembers the jar's current cookies for a later replay.
func (tc *TestContext) SaveCookies() error {
	req, err := http.NewRequest(http.MethodGet, tc.BaseURL+"/", nil)
	if err != nil {
		return err
	}
	tc.savedCookies = tc.client.Jar.Cookies(req.URL)
	if len(tc.savedCookies) == 0 {
		return fmt.Errorf("no cookies set by the gateway")
	}
	return nil
}

// ReplaySavedCookies sends the remembered cookies on a GET, ignoring the jar.
func (tc *TestContext) ReplaySavedCookies(path string) error {
	headers := map[string]string{}
	parts := make([]string, 0, len(tc.savedCookies))
	for _, c := range tc.savedCookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	headers["Cookie"] = strings.Join(parts, "; ")
	jar := tc.client.Jar
	tc.client.Jar = nil
	defer func() { tc.client.Jar = jar }()
	return tc.GET(path, headers)
}
