package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	fetchTimeout    = 30 * time.Second
	fetchMaxBytes   = 2 << 20 // 2 MB raw page cap
	fetchMaxReturn  = 50_000  // chars returned to the LLM
)

// WebFetchTool fetches a URL and extracts readable text from HTML.
type WebFetchTool struct {
	client *http.Client
}

func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{client: &http.Client{Timeout: fetchTimeout}}
}

func (t *WebFetchTool) Name() string { return "web_fetch" }
func (t *WebFetchTool) Description() string {
	return "Fetch a URL and return its text content (HTML is converted to plain text)"
}
func (t *WebFetchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url":       map[string]interface{}{"type": "string", "description": "URL to fetch (http or https)"},
			"max_chars": map[string]interface{}{"type": "integer", "description": "Cap on returned characters (default 50000)"},
		},
		"required": []string{"url"},
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return ErrorResult("url is required")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return ErrorResult("url must start with http:// or https://")
	}
	maxChars := intArg(args, "max_chars", fetchMaxReturn)
	if maxChars <= 0 || maxChars > fetchMaxReturn {
		maxChars = fetchMaxReturn
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ErrorResult(fmt.Sprintf("fetch: %v", err))
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; goforge)")

	resp, err := t.client.Do(req)
	if err != nil {
		return ErrorResult(fmt.Sprintf("fetch %s: %v", rawURL, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrorResult(fmt.Sprintf("fetch %s: HTTP %d", rawURL, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxBytes))
	if err != nil {
		return ErrorResult(fmt.Sprintf("fetch %s: %v", rawURL, err))
	}

	text := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "html") ||
		strings.Contains(strings.ToLower(text[:minInt(len(text), 256)]), "<html") {
		text = htmlToText(text)
	}
	if len(text) > maxChars {
		text = text[:maxChars] + "\n... (truncated)"
	}
	return SilentResult(text)
}

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style|noscript|head)[^>]*>.*?</\s*(script|style|noscript|head)\s*>`)
	blockRe  = regexp.MustCompile(`(?i)</?(p|div|br|li|tr|h[1-6]|section|article|blockquote)[^>]*>`)
	blankRe  = regexp.MustCompile(`\n{3,}`)
)

// htmlToText is a regex-based extraction: drop script/style, turn block
// boundaries into newlines, strip remaining tags, collapse whitespace.
func htmlToText(page string) string {
	page = scriptRe.ReplaceAllString(page, "")
	page = blockRe.ReplaceAllString(page, "\n")
	page = stripTags(page)

	lines := strings.Split(page, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	out := strings.Join(lines, "\n")
	out = blankRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
