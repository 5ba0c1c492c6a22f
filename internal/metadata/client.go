// Package metadata implements the enrichment provider client (C4): a
// batched, OAuth2-authenticated lookup against an external game-metadata
// API, and normalization of a hit into catalog enrichment fields.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/romvault/ingestor/internal/metrics"
)

// maxBatchSize is the largest number of aliased subqueries sent in one
// multi-query request (§4.5).
const maxBatchSize = 10

const fieldSet = "name,summary,rating,first_release_date,involved_companies.company.name,genres.name,cover.url,screenshots.url"

// Config controls the token endpoint, credentials, and query endpoint.
type Config struct {
	TokenURL     string
	QueryURL     string
	ClientID     string
	ClientSecret string
}

// hit is one aliased-subquery result as returned by the provider.
type hit struct {
	Name                string `json:"name"`
	Summary             string `json:"summary"`
	Rating              float64 `json:"rating"`
	FirstReleaseDate    int64  `json:"first_release_date"`
	InvolvedCompanies   []struct {
		Company struct {
			Name string `json:"name"`
		} `json:"company"`
	} `json:"involved_companies"`
	Genres []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Cover struct {
		URL string `json:"url"`
	} `json:"cover"`
	Screenshots []struct {
		URL string `json:"url"`
	} `json:"screenshots"`
}

type multiQueryResult struct {
	Name   string `json:"name"`
	Result []hit  `json:"result"`
}

// Result is the normalized outcome of one input name: nil fields mean the
// provider had no hit (though Description is always non-nil, per I2's
// empty-string sentinel).
type Result struct {
	Description *string
	Rating      *float64
	ReleaseDate *time.Time
	Developer   *string
	Publisher   *string
	Genre       *string
	Images      []string
}

// httpDoer is the subset of *http.Client this package uses, narrowed so
// tests can substitute a fake transport.
type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is the C4 metadata client. It is stateless with respect to
// pacing: rate limiting is the caller's responsibility (§4.5).
type Client struct {
	http     httpDoer
	queryURL string
	clientID string
}

// New authenticates once against the token endpoint and returns a Client
// whose *http.Client transparently refreshes and attaches the bearer token
// for the remainder of the run. The eager fetch here is what lets the
// orchestrator treat provider-auth failure as a distinct, catchable step
// before it commits to starting the enrichment workers.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.TokenURL == "" || cfg.QueryURL == "" {
		return nil, fmt.Errorf("metadata: token url and query url are required")
	}
	oauthCfg := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	// The token source caches the fetched token, so the client reuses it
	// instead of authenticating a second time on its first request.
	ts := oauthCfg.TokenSource(ctx)
	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("metadata: acquire provider token: %w", err)
	}
	return &Client{http: oauth2.NewClient(ctx, ts), queryURL: cfg.QueryURL, clientID: cfg.ClientID}, nil
}

// NewWithDoer builds a Client around an arbitrary httpDoer, for tests.
func NewWithDoer(doer httpDoer, queryURL string) *Client {
	return &Client{http: doer, queryURL: queryURL}
}

// BatchLookup looks up up to maxBatchSize names in a single multi-query
// request and returns one Result per input name, in input order. A missing
// or malformed response for a given alias maps to the miss sentinel.
func (c *Client) BatchLookup(ctx context.Context, names []string) ([]Result, error) {
	if len(names) == 0 {
		return nil, nil
	}
	if len(names) > maxBatchSize {
		return nil, fmt.Errorf("metadata: batch of %d exceeds max %d", len(names), maxBatchSize)
	}

	body := buildMultiQuery(names)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.queryURL, bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("metadata: build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	if c.clientID != "" {
		req.Header.Set("Client-ID", c.clientID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveProviderCall(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("metadata: query request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata: query returned status %d", resp.StatusCode)
	}

	var raw []multiQueryResult
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("metadata: decode response: %w", err)
	}

	byAlias := make(map[string]multiQueryResult, len(raw))
	for _, r := range raw {
		byAlias[r.Name] = r
	}

	results := make([]Result, len(names))
	for i := range names {
		alias := aliasFor(i)
		r, ok := byAlias[alias]
		if !ok || len(r.Result) == 0 {
			results[i] = miss()
			continue
		}
		results[i] = normalize(r.Result[0])
	}
	return results, nil
}

func aliasFor(i int) string {
	return "q_" + strconv.Itoa(i)
}

func buildMultiQuery(names []string) string {
	var b strings.Builder
	for i, name := range names {
		fmt.Fprintf(&b, "query games %q {\n", aliasFor(i))
		fmt.Fprintf(&b, "  fields %s;\n", fieldSet)
		fmt.Fprintf(&b, "  search %q;\n", escapeQuery(name)+"*")
		b.WriteString("  sort popularity desc;\n")
		b.WriteString("  limit 1;\n")
		b.WriteString("};\n")
	}
	return b.String()
}

func escapeQuery(name string) string {
	return strings.ReplaceAll(name, `"`, `\"`)
}

// miss returns the "attempted, no hit" sentinel: an empty-string
// description with every other field left nil (I2).
func miss() Result {
	empty := ""
	return Result{Description: &empty}
}

func normalize(h hit) Result {
	r := Result{}
	desc := h.Summary
	r.Description = &desc

	rating := math.Round(h.Rating/20*100) / 100
	r.Rating = &rating

	if h.FirstReleaseDate > 0 {
		t := time.Unix(h.FirstReleaseDate, 0).UTC()
		r.ReleaseDate = &t
	}

	if len(h.InvolvedCompanies) > 0 {
		company := h.InvolvedCompanies[0].Company.Name
		r.Developer = &company
		r.Publisher = &company
	}

	if len(h.Genres) > 0 {
		names := make([]string, len(h.Genres))
		for i, g := range h.Genres {
			names[i] = g.Name
		}
		genre := strings.Join(names, ",")
		r.Genre = &genre
	}

	var images []string
	if h.Cover.URL != "" {
		images = append(images, rewriteImageURL(h.Cover.URL))
	}
	for i, s := range h.Screenshots {
		if i >= 3 {
			break
		}
		images = append(images, rewriteImageURL(s.URL))
	}
	r.Images = images

	return r
}

// rewriteImageURL applies the two provider-specific rewrites from §4.5: a
// protocol-relative URL is made absolute, and thumbnail-sized covers are
// upgraded to full resolution.
func rewriteImageURL(url string) string {
	if strings.HasPrefix(url, "//") {
		url = "https:" + url
	}
	return strings.ReplaceAll(url, "t_thumb", "t_1080p")
}
