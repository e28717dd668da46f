package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/crmkit/errors"
)

// Resources served by the backend under /<name>.
var Resources = []string{"contacts", "jobs", "tasks", "estimates", "invoices"}

// Shape selects how list responses are encoded.
type Shape int

const (
	// ShapeData wraps items as {"data": [...], "total": n, "hasMore": b}.
	ShapeData Shape = iota
	// ShapeItems wraps items as {"items": [...], "total": n}.
	ShapeItems
	// ShapeBare returns a bare JSON array.
	ShapeBare
)

type fault struct {
	remaining int // <0 means forever
	status    int // 0 drops the connection
}

// Hit is one request seen by the backend.
type Hit struct {
	Method   string
	Path     string
	Query    string
	Location string
	Header   http.Header
}

// Backend is a fake CRM API.
type Backend struct {
	t      testing.TB
	server *httptest.Server

	mu      sync.Mutex
	items   map[string]map[string][]gin.H // resource -> location -> items
	shapes  map[string]Shape
	faults  map[string]*fault
	latency map[string]time.Duration
	hits    []Hit
	summary gin.H
}

// NewBackend starts a backend and closes it when t ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &Backend{t: t}
	b.reset()

	engine := gin.New()
	engine.Use(b.record, b.inject)
	for _, r := range Resources {
		engine.GET("/"+r, b.list(r))
	}
	engine.GET("/analytics/summary", b.analytics)
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	b.server = httptest.NewServer(engine)
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the backend base URL.
func (b *Backend) URL() string {
	return b.server.URL
}

// Client returns an HTTP client for the backend.
func (b *Backend) Client() *http.Client {
	return b.server.Client()
}

// Seed adds n generated items for resource under location.
func (b *Backend) Seed(resource, location string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	byLoc := b.items[resource]
	if byLoc == nil {
		byLoc = make(map[string][]gin.H)
		b.items[resource] = byLoc
	}
	start := len(byLoc[location])
	for i := start; i < start+n; i++ {
		byLoc[location] = append(byLoc[location], generate(resource, location, i))
	}
}

// SetShape changes the list encoding for resource.
func (b *Backend) SetShape(resource string, s Shape) {
	b.mu.Lock()
	b.shapes[resource] = s
	b.mu.Unlock()
}

// SetSummary sets the analytics summary body.
func (b *Backend) SetSummary(summary gin.H) {
	b.mu.Lock()
	b.summary = summary
	b.mu.Unlock()
}

// Fail makes the next n requests to path answer with status.
// n < 0 fails forever; status 0 drops the connection instead.
func (b *Backend) Fail(path string, n, status int) {
	b.mu.Lock()
	b.faults[path] = &fault{remaining: n, status: status}
	b.mu.Unlock()
}

// Unauthorized makes every request to path answer 401.
func (b *Backend) Unauthorized(path string) {
	b.Fail(path, -1, http.StatusUnauthorized)
}

// Heal removes any fault on path.
func (b *Backend) Heal(path string) {
	b.mu.Lock()
	delete(b.faults, path)
	b.mu.Unlock()
}

// Delay holds every request to path for d before answering.
func (b *Backend) Delay(path string, d time.Duration) {
	b.mu.Lock()
	b.latency[path] = d
	b.mu.Unlock()
}

// Hits returns how many requests reached path.
func (b *Backend) Hits(path string) int {
	return len(b.HitsWhere(func(h Hit) bool { return h.Path == path }))
}

// HitsAt returns how many requests reached path under location.
func (b *Backend) HitsAt(path, location string) int {
	return len(b.HitsWhere(func(h Hit) bool { return h.Path == path && h.Location == location }))
}

// HitsWhere returns the recorded requests matching keep.
func (b *Backend) HitsWhere(keep func(Hit) bool) []Hit {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Hit
	for _, h := range b.hits {
		if keep(h) {
			out = append(out, h)
		}
	}
	return out
}

// LastHit returns the most recent request to path.
func (b *Backend) LastHit(path string) (Hit, bool) {
	hits := b.HitsWhere(func(h Hit) bool { return h.Path == path })
	if len(hits) == 0 {
		return Hit{}, false
	}
	return hits[len(hits)-1], true
}

// Reset clears data, faults and recorded hits.
func (b *Backend) Reset() {
	b.mu.Lock()
	b.reset()
	b.mu.Unlock()
}

func (b *Backend) reset() {
	b.items = make(map[string]map[string][]gin.H)
	b.shapes = make(map[string]Shape)
	b.faults = make(map[string]*fault)
	b.latency = make(map[string]time.Duration)
	b.hits = nil
	b.summary = gin.H{"revenue": 0, "jobsCompleted": 0, "openEstimates": 0, "outstandingInvoices": 0}
}

func (b *Backend) record(c *gin.Context) {
	b.mu.Lock()
	b.hits = append(b.hits, Hit{
		Method:   c.Request.Method,
		Path:     c.Request.URL.Path,
		Query:    c.Request.URL.RawQuery,
		Location: c.GetHeader("X-LOCATION"),
		Header:   c.Request.Header.Clone(),
	})
	b.mu.Unlock()
	c.Next()
}

func (b *Backend) inject(c *gin.Context) {
	path := c.Request.URL.Path

	b.mu.Lock()
	delay := b.latency[path]
	f := b.faults[path]
	var status int
	failing := false
	if f != nil && f.remaining != 0 {
		failing = true
		status = f.status
		if f.remaining > 0 {
			f.remaining--
		}
	}
	b.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}
	if !failing {
		c.Next()
		return
	}
	if status == 0 {
		drop(c)
		return
	}
	body := errors.New(errors.ErrCodeHTTP, fmt.Sprintf("injected failure %d", status)).ToResponse()
	c.AbortWithStatusJSON(status, body)
}

// drop closes the underlying connection without a response.
func drop(c *gin.Context) {
	c.Abort()
	conn, _, err := c.Writer.Hijack()
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	_ = conn.Close()
}

func (b *Backend) list(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, _ := strconv.Atoi(c.DefaultQuery("from", "0"))
		size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
		location := c.GetHeader("X-LOCATION")

		b.mu.Lock()
		all := b.items[resource][location]
		shape := b.shapes[resource]
		b.mu.Unlock()

		page := window(all, from, size)
		hasMore := from+len(page) < len(all)

		switch shape {
		case ShapeBare:
			c.JSON(http.StatusOK, page)
		case ShapeItems:
			c.JSON(http.StatusOK, gin.H{"items": page, "total": len(all)})
		default:
			c.JSON(http.StatusOK, gin.H{"data": page, "total": len(all), "hasMore": hasMore})
		}
	}
}

func (b *Backend) analytics(c *gin.Context) {
	b.mu.Lock()
	summary := b.summary
	b.mu.Unlock()
	c.JSON(http.StatusOK, summary)
}

func window(all []gin.H, from, size int) []gin.H {
	if from < 0 {
		from = 0
	}
	if from >= len(all) || size <= 0 {
		return []gin.H{}
	}
	end := min(from+size, len(all))
	return all[from:end]
}

func generate(resource, location string, i int) gin.H {
	id := fmt.Sprintf("%s-%s-%03d", resource, location, i+1)
	item := gin.H{"id": id, "locationId": location}
	switch resource {
	case "contacts":
		item["name"] = fmt.Sprintf("Contact %d", i+1)
		item["email"] = fmt.Sprintf("contact%d@example.com", i+1)
		item["phone"] = fmt.Sprintf("555-01%02d", i%100)
	case "jobs":
		item["title"] = fmt.Sprintf("Job %d", i+1)
		item["status"] = []string{"scheduled", "in_progress", "completed"}[i%3]
		item["contactId"] = fmt.Sprintf("contacts-%s-%03d", location, i+1)
	case "tasks":
		item["title"] = fmt.Sprintf("Task %d", i+1)
		item["done"] = i%2 == 0
	case "estimates":
		item["number"] = fmt.Sprintf("EST-%04d", i+1)
		item["total"] = float64(100 * (i + 1))
		item["status"] = "sent"
	case "invoices":
		item["number"] = fmt.Sprintf("INV-%04d", i+1)
		item["amountDue"] = float64(50 * (i + 1))
		item["status"] = "open"
	}
	return item
}
