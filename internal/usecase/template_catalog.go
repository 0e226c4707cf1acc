package usecase

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"telegram-image-studio/internal/domain"
	"telegram-image-studio/internal/domain/model"
	"telegram-image-studio/internal/domain/ports/adapter"
	"telegram-image-studio/internal/infra/metrics"
)

// TemplateCatalog serves the template gallery.
type TemplateCatalog interface {
	List(ctx context.Context, page, limit int) (*model.TemplatePage, error)
	// Get finds a template among the cached pages, loading the first page on a cold cache.
	Get(ctx context.Context, id int64) (*model.Template, error)
	UsageRecorder
}

// Compile-time check
var _ TemplateCatalog = (*templateCatalog)(nil)

type cachedPage struct {
	page    *model.TemplatePage
	fetched time.Time
}

type templateCatalog struct {
	backend adapter.BackendClient
	ttl     time.Duration
	log     *zerolog.Logger
	now     func() time.Time

	group singleflight.Group // one backend fetch per page key

	mu    sync.Mutex
	pages map[string]cachedPage
	usage map[int64]int // local increments since the last fetch
}

func NewTemplateCatalog(backend adapter.BackendClient, ttl time.Duration, log *zerolog.Logger) TemplateCatalog {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &templateCatalog{
		backend: backend,
		ttl:     ttl,
		log:     log,
		now:     time.Now,
		pages:   make(map[string]cachedPage),
		usage:   make(map[int64]int),
	}
}

func pageKey(page, limit int) string { return strconv.Itoa(page) + "/" + strconv.Itoa(limit) }

func (c *templateCatalog) List(ctx context.Context, page, limit int) (*model.TemplatePage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	key := pageKey(page, limit)

	c.mu.Lock()
	if cp, ok := c.pages[key]; ok && c.now().Sub(cp.fetched) < c.ttl {
		out := c.withUsage(cp.page)
		c.mu.Unlock()
		metrics.IncCacheRequest("templates", "hit")
		return out, nil
	}
	c.mu.Unlock()
	metrics.IncCacheRequest("templates", "miss")

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.backend.ListTemplates(ctx, page, limit)
	})
	if err != nil {
		return nil, err
	}
	p := v.(*model.TemplatePage)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[key] = cachedPage{page: p, fetched: c.now()}
	for _, t := range p.Templates {
		delete(c.usage, t.ID)
	}
	return c.withUsage(p), nil
}

// withUsage copies p with local usage increments applied. Caller holds mu.
func (c *templateCatalog) withUsage(p *model.TemplatePage) *model.TemplatePage {
	out := *p
	out.Templates = append([]model.Template(nil), p.Templates...)
	for i := range out.Templates {
		out.Templates[i].UsageCount += c.usage[out.Templates[i].ID]
	}
	return &out
}

func (c *templateCatalog) Get(ctx context.Context, id int64) (*model.Template, error) {
	if t := c.find(id); t != nil {
		return t, nil
	}
	if _, err := c.List(ctx, 1, 100); err != nil {
		return nil, err
	}
	if t := c.find(id); t != nil {
		return t, nil
	}
	return nil, domain.ErrNotFound
}

func (c *templateCatalog) find(id int64) *model.Template {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cp := range c.pages {
		for _, t := range cp.page.Templates {
			if t.ID == id {
				t.UsageCount += c.usage[id]
				return &t
			}
		}
	}
	return nil
}

func (c *templateCatalog) IncrementUsage(templateID int64) {
	c.mu.Lock()
	c.usage[templateID]++
	c.mu.Unlock()
	c.log.Debug().Int64("template_id", templateID).Msg("template usage incremented")
}
