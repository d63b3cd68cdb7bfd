package main

// This file contains test helpers for making requests to an httptest.Server.

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// testClient is a helper for making requests to an httptest.Server.
type testClient struct {
	tb     testing.TB
	base   string
	client *http.Client
}

// getTestClient returns a testClient that makes requests to the given
// httptest.Server and does not follow redirects.
func getTestClient(tb testing.TB, server *httptest.Server) *testClient {
	tb.Helper()

	client := server.Client()

	// We never want the client to follow redirects, as we want to see the
	// redirect URL.
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		tb.Logf("not following redirect: %v", req.URL)
		return http.ErrUseLastResponse
	}
	return &testClient{tb: tb, base: server.URL, client: client}
}

// MakeRequest makes a request for path, relative to the server's URL.
func (c *testClient) MakeRequest(method, path string, body io.Reader) *http.Response {
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		c.tb.Fatalf("failed to create request: %v", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.tb.Fatalf("failed to make request: %v", err)
	}
	c.tb.Cleanup(func() { resp.Body.Close() })
	return resp
}

// Get makes a GET request to the given path on the test server.
func (c *testClient) Get(path string) *http.Response {
	return c.MakeRequest("GET", path, nil)
}

// Delete makes a DELETE request to the given path on the test server.
func (c *testClient) Delete(path string) *http.Response {
	return c.MakeRequest("DELETE", path, nil)
}

// tcGetJSON makes a GET request to the given path on the test server and
// decodes the response JSON into the provided value.
//
// It is a freestanding function because it is generic over the response
// type, and Go does not support generic methods.
func tcGetJSON[T any](c *testClient, path string) T {
	resp := c.Get(path)
	return extractResponseJSON[T](c.tb, resp)
}

// extractResponseJSON decodes the JSON from an HTTP response into the provided
// value, asserting that it has a successful status code and JSON content type.
func extractResponseJSON[T any](tb testing.TB, resp *http.Response) T {
	tb.Helper()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		tb.Fatalf("unexpected status code: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		tb.Fatalf("unexpected content type: %v", ct)
	}

	var val T
	if err := json.NewDecoder(resp.Body).Decode(&val); err != nil {
		tb.Fatalf("failed to decode JSON: %v", err)
	}
	return val
}

// assertStatus asserts that the response has the expected status code.
func assertStatus(tb testing.TB, r *http.Response, want int) {
	tb.Helper()
	if r.StatusCode != want {
		tb.Fatalf("unexpected status code: %d, want %d", r.StatusCode, want)
	}
}
