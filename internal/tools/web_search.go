package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	searchTimeout     = 15 * time.Second
	defaultMaxResults = 5
)

type searchResult struct {
	Title   string
	URL     string
	Snippet string
}

// WebSearchTool searches the web: Brave when an API key is configured,
// DuckDuckGo HTML scrape otherwise.
type WebSearchTool struct {
	braveKey string
	client   *http.Client
}

func NewWebSearchTool(braveKey string) *WebSearchTool {
	return &WebSearchTool{
		braveKey: braveKey,
		client:   &http.Client{Timeout: searchTimeout},
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }
func (t *WebSearchTool) Description() string {
	return "Search the web and return titles, URLs and snippets"
}
func (t *WebSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query":       map[string]interface{}{"type": "string", "description": "Search query"},
			"max_results": map[string]interface{}{"type": "integer", "description": "Max results (default 5)"},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	query, _ := args["query"].(string)
	if query == "" {
		return ErrorResult("query is required")
	}
	max := intArg(args, "max_results", defaultMaxResults)
	if max < 1 || max > 10 {
		max = defaultMaxResults
	}

	var (
		results []searchResult
		source  string
		err     error
	)
	if t.braveKey != "" {
		results, err = t.searchBrave(ctx, query, max)
		source = "brave"
	} else {
		results, err = t.searchDDG(ctx, query, max)
		source = "duckduckgo"
	}
	if err != nil {
		return ErrorResult(fmt.Sprintf("web search: %v", err))
	}
	if len(results) == 0 {
		return SilentResult("No results for " + query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Results for %q (%s):\n", query, source)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", truncate(r.Snippet, 200))
		}
	}
	return SilentResult(strings.TrimRight(b.String(), "\n"))
}

func (t *WebSearchTool) searchBrave(ctx context.Context, query string, max int) ([]searchResult, error) {
	u := "https://api.search.brave.com/res/v1/web/search?q=" + url.QueryEscape(query) +
		fmt.Sprintf("&count=%d", max)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Subscription-Token", t.braveKey)
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("brave returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make([]searchResult, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		out = append(out, searchResult{
			Title:   stripTags(r.Title),
			URL:     r.URL,
			Snippet: stripTags(r.Description),
		})
		if len(out) >= max {
			break
		}
	}
	return out, nil
}

var (
	ddgResultRe  = regexp.MustCompile(`(?s)<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	ddgSnippetRe = regexp.MustCompile(`(?s)<a[^>]+class="result__snippet"[^>]*>(.*?)</a>`)
)

func (t *WebSearchTool) searchDDG(ctx context.Context, query string, max int) ([]searchResult, error) {
	u := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; goforge)")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, err
	}
	page := string(body)

	links := ddgResultRe.FindAllStringSubmatch(page, max)
	snippets := ddgSnippetRe.FindAllStringSubmatch(page, max)

	out := make([]searchResult, 0, len(links))
	for i, m := range links {
		r := searchResult{
			Title: stripTags(m[2]),
			URL:   ddgResolveURL(m[1]),
		}
		if i < len(snippets) {
			r.Snippet = stripTags(snippets[i][1])
		}
		out = append(out, r)
	}
	return out, nil
}

// ddgResolveURL unwraps DuckDuckGo's /l/?uddg= redirect links.
func ddgResolveURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		if decoded, err := url.QueryUnescape(target); err == nil {
			return decoded
		}
	}
	return raw
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

func stripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(s, "")))
}
