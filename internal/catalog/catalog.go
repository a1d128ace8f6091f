package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/example/skillbook/internal/models"
)

// PageSize is the fixed page size for every exhaustive browse view.
const PageSize = 6

// Client fetches published skill categories from the catalog service.
type Client struct {
	Endpoint string
	Client   *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}}
}

type pageResponse struct {
	Categories []models.SkillCategory `json:"categories"`
	Total      int                    `json:"total"`
}

// CategoryPage is one page of the exhaustive browse view, in stable
// server-provided order.
type CategoryPage struct {
	Categories []models.SkillCategory
	Page       int
	TotalPages int
}

// Page fetches one page of published categories (1-based). Ordering is the
// server's; the random carousel subset is a separate operation (Featured).
func (c *Client) Page(ctx context.Context, page int) (CategoryPage, error) {
	if page < 1 {
		page = 1
	}
	u := fmt.Sprintf("%s/categories/published?page=%d&size=%d", c.Endpoint, page, PageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return CategoryPage{}, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return CategoryPage{}, fmt.Errorf("catalog page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return CategoryPage{}, fmt.Errorf("catalog page: unexpected status %d", resp.StatusCode)
	}
	var body pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return CategoryPage{}, fmt.Errorf("catalog page: decode: %w", err)
	}
	total := (body.Total + PageSize - 1) / PageSize
	if total < 1 {
		total = 1
	}
	return CategoryPage{Categories: body.Categories, Page: page, TotalPages: total}, nil
}

// Featured fetches the full published list and returns a uniform random
// n-of-N subset for the carousel. The subset is not reproducible across calls
// and promises no ordering relation to the paginated list.
func (c *Client) Featured(ctx context.Context, n int) ([]models.SkillCategory, error) {
	u := fmt.Sprintf("%s/categories/published", c.Endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog featured: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog featured: unexpected status %d", resp.StatusCode)
	}
	var body pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("catalog featured: decode: %w", err)
	}
	cats := body.Categories
	cp := make([]models.SkillCategory, len(cats))
	copy(cp, cats)
	rand.Shuffle(len(cp), func(i, j int) { cp[i], cp[j] = cp[j], cp[i] })
	if n > len(cp) {
		n = len(cp)
	}
	return cp[:n], nil
}
