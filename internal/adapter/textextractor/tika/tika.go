// Package tika provides Apache Tika integration for text extraction.
//
// It downloads a resume document from a share link and submits the
// bytes to a Tika server, returning clean plain text. Google Drive
// share links are rewritten to their direct-download form first.
package tika

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Client is a minimal Apache Tika HTTP client implementing domain.TextExtractor.
// It performs PUT /tika with Accept: text/plain to retrieve extracted text.
// See: https://tika.apache.org/server/ for API details.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a Tika client with a default timeout.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// NewWithHTTPClient wires an explicit HTTP client, used by tests.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: baseURL, httpClient: hc}
}

var driveShareRe = regexp.MustCompile(`/d/(.*?)/`)

// NormalizeShareURL rewrites a Google Drive share link to the direct
// download endpoint; other URLs pass through unchanged.
func NormalizeShareURL(url string) string {
	if !strings.Contains(url, "drive.google.com") {
		return url
	}
	if m := driveShareRe.FindStringSubmatch(url); m != nil {
		return "https://drive.google.com/uc?export=download&id=" + m[1]
	}
	return url
}

const maxDocumentBytes = 25 * 1024 * 1024

// ExtractURL downloads the document behind url and returns its plain
// text via the Tika server.
func (c *Client) ExtractURL(ctx context.Context, url string) (string, error) {
	doc, err := c.download(ctx, NormalizeShareURL(url))
	if err != nil {
		return "", fmt.Errorf("op=tika.download: %w", err)
	}

	base := c.baseURL
	if base == "" {
		base = "http://localhost:9998"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, base+"/tika", bytes.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("op=tika.extract: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("op=tika.extract: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("op=tika.extract: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("op=tika.extract: %w", err)
	}
	return normalizeText(string(b)), nil
}

// normalizeText strips the control characters PDF extraction tends to
// leak (NULs, form feeds, DEL) and collapses whitespace runs, leaving
// one clean line of resume text for the scoring prompt.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	limited := io.LimitReader(resp.Body, maxDocumentBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(body) > maxDocumentBytes {
		return nil, fmt.Errorf("document too large (>%d bytes)", maxDocumentBytes)
	}
	return body, nil
}
