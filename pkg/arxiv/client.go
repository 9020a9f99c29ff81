package arxiv

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flopap/backend/internal/domain"
)

const defaultBaseURL = "http://export.arxiv.org/api/query"

type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithProxy(proxyURL string) Option {
	return func(c *Client) {
		u, err := url.Parse(proxyURL)
		if err != nil || proxyURL == "" {
			return
		}
		c.httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
	}
}

func WithRetry(retries int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = retries
		c.retryDelay = delay
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		retryDelay: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type SearchResult struct {
	Papers       []*domain.Paper
	TotalResults int
}

// Feed represents the arXiv Atom feed response
type Feed struct {
	XMLName      xml.Name `xml:"feed"`
	TotalResults int      `xml:"totalResults"`
	Entries      []Entry  `xml:"entry"`
}

type Entry struct {
	ID              string     `xml:"id"`
	Title           string     `xml:"title"`
	Summary         string     `xml:"summary"`
	Published       string     `xml:"published"`
	Updated         string     `xml:"updated"`
	Authors         []Author   `xml:"author"`
	Links           []Link     `xml:"link"`
	Category        []Category `xml:"category"`
	PrimaryCategory Category   `xml:"primary_category"`
}

type Author struct {
	Name string `xml:"name"`
}

type Link struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

type Category struct {
	Term string `xml:"term,attr"`
}

// DateWindowQuery renders the submittedDate window for one UTC day,
// optionally ANDed with an extra term.
func DateWindowQuery(date time.Time, extraTerm string) string {
	day := date.Format("20060102")
	q := fmt.Sprintf("submittedDate:[%s000000 TO %s235959]", day, day)
	if extraTerm != "" {
		q = fmt.Sprintf("(%s) AND (%s)", q, extraTerm)
	}
	return q
}

// SearchWindow fetches one page of submissions for the given query,
// sorted by submission date descending.
func (c *Client) SearchWindow(ctx context.Context, query string, start, pageSize int) (*SearchResult, error) {
	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", fmt.Sprintf("%d", start))
	params.Set("max_results", fmt.Sprintf("%d", pageSize))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	return c.fetch(ctx, params)
}

// ScanRecent pages through the most recent submissions regardless of date,
// used as the fallback when a date-window query comes back empty.
func (c *Client) ScanRecent(ctx context.Context, start, pageSize int) (*SearchResult, error) {
	params := url.Values{}
	params.Set("search_query", "all:electron OR all:the")
	params.Set("start", fmt.Sprintf("%d", start))
	params.Set("max_results", fmt.Sprintf("%d", pageSize))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	return c.fetch(ctx, params)
}

func (c *Client) GetPaper(ctx context.Context, arxivID string) (*domain.Paper, error) {
	params := url.Values{}
	params.Set("id_list", arxivID)

	result, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(result.Papers) == 0 {
		return nil, nil
	}
	return result.Papers[0], nil
}

func (c *Client) fetch(ctx context.Context, params url.Values) (*SearchResult, error) {
	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, retryable, err := c.fetchOnce(ctx, reqURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, fmt.Errorf("arxiv API failed after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, reqURL string) (*SearchResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("arxiv API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("arxiv API returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("arxiv API returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read arxiv response: %w", err)
	}

	var feed Feed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, false, fmt.Errorf("failed to parse arxiv response: %w", err)
	}

	papers := make([]*domain.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		paper := entryToPaper(&entry)
		if paper != nil {
			papers = append(papers, paper)
		}
	}

	return &SearchResult{
		Papers:       papers,
		TotalResults: feed.TotalResults,
	}, false, nil
}

func entryToPaper(entry *Entry) *domain.Paper {
	// Extract arXiv ID from the full URL
	// e.g., "http://arxiv.org/abs/2301.00001v1" -> "2301.00001"
	arxivID := ExtractArxivID(entry.ID)
	if arxivID == "" {
		return nil
	}

	authors := make([]domain.Author, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		authors = append(authors, domain.Author{
			Name: strings.TrimSpace(a.Name),
		})
	}
	authorsJSON, _ := json.Marshal(authors)

	var submittedAt time.Time
	if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		submittedAt = t
	}
	var updatedAt *time.Time
	if t, err := time.Parse(time.RFC3339, entry.Updated); err == nil {
		updatedAt = &t
	}

	pdfURL := fmt.Sprintf("https://arxiv.org/pdf/%s", arxivID)
	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			pdfURL = link.Href
			break
		}
	}

	categories := make([]string, 0, len(entry.Category))
	for _, cat := range entry.Category {
		categories = append(categories, cat.Term)
	}
	primary := entry.PrimaryCategory.Term
	if primary == "" && len(categories) > 0 {
		primary = categories[0]
	}

	return &domain.Paper{
		ArxivID:         arxivID,
		Source:          domain.SourceArxiv,
		Title:           strings.Join(strings.Fields(entry.Title), " "),
		Summary:         strings.TrimSpace(entry.Summary),
		Authors:         authorsJSON,
		Categories:      categories,
		PrimaryCategory: primary,
		SubmittedAt:     submittedAt,
		UpdatedAt:       updatedAt,
		PDFURL:          pdfURL,
		AbsURL:          fmt.Sprintf("https://arxiv.org/abs/%s", arxivID),
	}
}

// ExtractArxivID pulls the bare id out of an entry URL, dropping any
// version suffix.
func ExtractArxivID(fullURL string) string {
	// Handle formats like:
	// "http://arxiv.org/abs/2301.00001v1"
	// "http://arxiv.org/abs/hep-th/9901001v1"
	parts := strings.Split(fullURL, "/abs/")
	if len(parts) != 2 {
		return ""
	}
	id := parts[1]
	if idx := strings.LastIndex(id, "v"); idx > 0 {
		versionPart := id[idx+1:]
		isVersion := len(versionPart) > 0
		for _, c := range versionPart {
			if c < '0' || c > '9' {
				isVersion = false
				break
			}
		}
		if isVersion {
			id = id[:idx]
		}
	}
	return id
}
