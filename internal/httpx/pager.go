package httpx

import (
	"context"
	"net/http"
	"net/url"
)

type listPage struct {
	Value    []any  `json:"value"`
	NextLink string `json:"nextLink"`
}

// Pager follows nextLink across list pages. It satisfies backend.Pager.
type Pager struct {
	client  *Client
	next    string
	query   url.Values
	started bool
}

func NewPager(c *Client, path string, query url.Values) *Pager {
	return &Pager{client: c, next: path, query: query}
}

func (p *Pager) More() bool {
	return !p.started || p.next != ""
}

func (p *Pager) NextPage(ctx context.Context) ([]any, error) {
	query := p.query
	if p.started {
		// nextLink already carries the query string
		query = nil
	}
	p.started = true
	resp, err := p.client.Do(ctx, http.MethodGet, p.next, query, nil)
	if err != nil {
		return nil, err
	}
	var page listPage
	if err := resp.Decode(&page); err != nil {
		return nil, err
	}
	p.next = page.NextLink
	if page.Value == nil {
		page.Value = []any{}
	}
	return page.Value, nil
}
