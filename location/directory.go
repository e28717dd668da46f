package location

import "sync"

// Directory resolves location ids to their display names.
type Directory struct {
	mu    sync.RWMutex
	byID  map[string]Context
	order []string
}

// NewDirectory creates a directory from known locations.
func NewDirectory(known ...Context) *Directory {
	d := &Directory{byID: make(map[string]Context, len(known))}
	for _, c := range known {
		d.Add(c)
	}
	return d
}

// Add registers or replaces a location.
func (d *Directory) Add(c Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.DisplayName == "" {
		c.DisplayName = c.ID
	}
	if _, ok := d.byID[c.ID]; !ok {
		d.order = append(d.order, c.ID)
	}
	d.byID[c.ID] = c
}

// Resolve returns the known location for id, or one named after the id.
func (d *Directory) Resolve(id string) (Context, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if c, ok := d.byID[id]; ok {
		return c, true
	}
	return Context{ID: id, DisplayName: id}, false
}

// List returns known locations in registration order.
func (d *Directory) List() []Context {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Context, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id])
	}
	return out
}
