// Package listing implements customers list view-model: it accumulates
// pages of the newest-first listing and switches between browsing and
// prefix search modes.
package listing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/umalmyha/customer-records/internal/model"
	"golang.org/x/sync/singleflight"
)

// DefaultPageSize is number of customers requested per page
const DefaultPageSize = 9

// Source provides customers for the controller
type Source interface {
	ListPage(ctx context.Context, size int, after *model.Cursor) (*model.Page, error)
	Search(ctx context.Context, term string) ([]*model.Customer, error)
}

// Mode is controller state
type Mode int

const (
	// Browsing accumulates pages of the whole listing
	Browsing Mode = iota
	// Searching holds single-shot search result
	Searching
)

func (m Mode) String() string {
	switch m {
	case Browsing:
		return "browsing"
	case Searching:
		return "searching"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// State is a point-in-time copy of controller state
type State struct {
	Mode    Mode
	Term    string
	Items   []*model.Customer
	HasMore bool
	Loading bool
}

// Controller is customers list view-model, safe for concurrent use
type Controller struct {
	source   Source
	pageSize int
	fetches  singleflight.Group

	mu       sync.Mutex
	mode     Mode
	term     string
	items    []*model.Customer
	ids      map[string]struct{}
	cursor   *model.Cursor
	hasMore  bool
	inFlight int
	// generation changes on every reset, results fetched for older generation are dropped
	generation uint64
}

// NewController builds controller, non-positive pageSize falls back to DefaultPageSize
func NewController(source Source, pageSize int) *Controller {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Controller{
		source:   source,
		pageSize: pageSize,
		ids:      make(map[string]struct{}),
		hasMore:  true,
	}
}

// Reload switches controller to browsing mode, drops accumulated items and loads the first page
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	c.reset(Browsing, "")
	gen := c.generation
	c.mu.Unlock()

	return c.fetch(ctx, gen)
}

// LoadMore appends next page to accumulated items. Concurrent calls share a single fetch.
// It is a no-op in searching mode or when listing is exhausted.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.mode != Browsing || !c.hasMore {
		c.mu.Unlock()
		return nil
	}
	gen := c.generation
	c.mu.Unlock()

	return c.fetch(ctx, gen)
}

// Search replaces items with customers whose name starts with term, blank term clears search
func (c *Controller) Search(ctx context.Context, term string) error {
	if strings.TrimSpace(term) == "" {
		return c.ClearSearch(ctx)
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.inFlight++
	c.mu.Unlock()

	results, err := c.source.Search(ctx, term)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--

	if err != nil {
		return err
	}

	if gen != c.generation {
		return nil
	}

	c.mode = Searching
	c.term = term
	c.items = nil
	c.ids = make(map[string]struct{}, len(results))
	c.merge(results)
	c.cursor = nil
	c.hasMore = false
	return nil
}

// ClearSearch returns to browsing mode starting from the first page
func (c *Controller) ClearSearch(ctx context.Context) error {
	return c.Reload(ctx)
}

// Remove drops customer from accumulated items without reloading
func (c *Controller) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.ids[id]; !ok {
		return
	}
	delete(c.ids, id)

	kept := c.items[:0]
	for _, item := range c.items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	c.items = kept
}

// Snapshot returns copy of current state
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]*model.Customer, len(c.items))
	copy(items, c.items)

	return State{
		Mode:    c.mode,
		Term:    c.term,
		Items:   items,
		HasMore: c.hasMore,
		Loading: c.inFlight > 0,
	}
}

func (c *Controller) fetch(ctx context.Context, gen uint64) error {
	_, err, _ := c.fetches.Do(fmt.Sprintf("page-%d", gen), func() (any, error) {
		return nil, c.fetchPage(ctx, gen)
	})
	return err
}

func (c *Controller) fetchPage(ctx context.Context, gen uint64) error {
	c.mu.Lock()
	if gen != c.generation || c.mode != Browsing || !c.hasMore {
		c.mu.Unlock()
		return nil
	}
	cursor := c.cursor
	c.inFlight++
	c.mu.Unlock()

	page, err := c.source.ListPage(ctx, c.pageSize, cursor)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--

	if err != nil {
		return err
	}

	if gen != c.generation {
		return nil
	}

	c.merge(page.Items)
	if page.Next != nil {
		c.cursor = page.Next
	}
	c.hasMore = len(page.Items) == c.pageSize
	return nil
}

// merge appends items which are not accumulated yet, must be called under lock
func (c *Controller) merge(items []*model.Customer) {
	for _, item := range items {
		if _, ok := c.ids[item.ID]; ok {
			continue
		}
		c.ids[item.ID] = struct{}{}
		c.items = append(c.items, item)
	}
}

// reset must be called under lock
func (c *Controller) reset(mode Mode, term string) {
	c.mode = mode
	c.term = term
	c.items = nil
	c.ids = make(map[string]struct{})
	c.cursor = nil
	c.hasMore = true
	c.generation++
}
