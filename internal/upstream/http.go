package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"aspos-sync/pkg/syncerr"
)

// maxBodySize caps how much of a single response is read.
const maxBodySize = 64 << 20

// getJSON performs an authenticated GET and returns the raw body. Transport
// failures and non-2xx statuses are classified; 401/403 are auth failures.
func getJSON(ctx context.Context, client *http.Client, rawURL string, header http.Header) ([]byte, error) {
	op := "GET " + rawURL

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, syncerr.Network(op, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, syncerr.Network(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, syncerr.Network(op, fmt.Errorf("read body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, syncerr.Auth(op, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, syncerr.Network(op, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200)))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
