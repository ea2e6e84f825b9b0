package backend

import "context"

// Pager walks a paged list result.
type Pager interface {
	More() bool
	NextPage(ctx context.Context) ([]any, error)
}

// Drain collects every item of p in order.
func Drain(ctx context.Context, p Pager) ([]any, error) {
	items := []any{}
	for p.More() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
	}
	return items, nil
}

// SlicePager serves pre-split pages.
type SlicePager struct {
	Pages [][]any
	next  int
}

func (p *SlicePager) More() bool { return p.next < len(p.Pages) }

func (p *SlicePager) NextPage(context.Context) ([]any, error) {
	page := p.Pages[p.next]
	p.next++
	return page, nil
}
