package client

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/kbukum/crmkit/cache"
	"github.com/kbukum/crmkit/crm"
	"github.com/kbukum/crmkit/errors"
	"github.com/kbukum/crmkit/location"
	"github.com/kbukum/crmkit/logger"
	"github.com/kbukum/crmkit/snapshot"
	"github.com/kbukum/crmkit/transport"
	"github.com/kbukum/crmkit/validation"
)

const opAnalytics = "analytics"

// Contacts returns one page of contacts for the active location.
func (c *Client) Contacts(ctx context.Context, page, size int) (crm.Page[crm.Contact], error) {
	return list[crm.Contact](ctx, c, crm.Contacts, page, size)
}

// Jobs returns one page of jobs for the active location.
func (c *Client) Jobs(ctx context.Context, page, size int) (crm.Page[crm.Job], error) {
	return list[crm.Job](ctx, c, crm.Jobs, page, size)
}

// Tasks returns one page of tasks for the active location.
func (c *Client) Tasks(ctx context.Context, page, size int) (crm.Page[crm.Task], error) {
	return list[crm.Task](ctx, c, crm.Tasks, page, size)
}

// Estimates returns one page of estimates for the active location.
func (c *Client) Estimates(ctx context.Context, page, size int) (crm.Page[crm.Estimate], error) {
	return list[crm.Estimate](ctx, c, crm.Estimates, page, size)
}

// Invoices returns one page of invoices for the active location.
func (c *Client) Invoices(ctx context.Context, page, size int) (crm.Page[crm.Invoice], error) {
	return list[crm.Invoice](ctx, c, crm.Invoices, page, size)
}

// Analytics returns the summary for the active location.
//
// On failure other than an expired session the last summary seen for the
// location is returned, marked stale, along with the error.
func (c *Client) Analytics(ctx context.Context) (crm.AnalyticsSummary, error) {
	loc := c.router.Current()
	key := location.Key(opAnalytics, 0, 0, loc.ID)

	summary, err := cache.Fetch(ctx, c.cache, key, c.cfg.TTL(opAnalytics), func(ctx context.Context) (crm.AnalyticsSummary, error) {
		var s crm.AnalyticsSummary
		resp, err := c.transport.Send(ctx, transport.Request{
			Endpoint:  "/analytics/summary",
			Headers:   map[string]string{location.HeaderName: loc.ID},
			Operation: opAnalytics,
		})
		if err != nil {
			return s, err
		}
		if err := resp.Decode(&s); err != nil {
			return s, err
		}
		s.FetchedAt = time.Now()
		c.saveSnapshot(ctx, key, s)
		return s, nil
	})
	if err == nil || errors.IsSessionExpired(err) {
		return summary, err
	}
	if stale, ok := lastGood(ctx, c, key, func(s *crm.AnalyticsSummary) { s.Stale = true }); ok {
		c.warnStale(opAnalytics, loc.ID, err)
		return stale, err
	}
	return crm.AnalyticsSummary{}, err
}

// list fetches a page through the cache, pinned to the location active at
// call time. On failure other than an expired session it falls back to the
// last good page for the same key, marked stale.
func list[T any](ctx context.Context, c *Client, resource crm.Resource, page, size int) (crm.Page[T], error) {
	if err := validation.New().
		Min("page", page, 1).
		Range("size", size, 1, MaxPageSize).
		Err(); err != nil {
		return crm.Page[T]{}, err
	}

	op := string(resource)
	loc := c.router.Current()
	key := location.Key(op, page, size, loc.ID)

	result, err := cache.Fetch(ctx, c.cache, key, c.cfg.TTL(op), func(ctx context.Context) (crm.Page[T], error) {
		resp, err := c.transport.Send(ctx, transport.Request{
			Endpoint: resource.Endpoint(),
			Query: url.Values{
				"from": {strconv.Itoa(crm.Offset(page, size))},
				"size": {strconv.Itoa(size)},
			},
			Headers:   map[string]string{location.HeaderName: loc.ID},
			Operation: op,
		})
		if err != nil {
			return crm.Page[T]{}, err
		}
		p, err := crm.DecodePage[T](resp.Body, page, size)
		if err != nil {
			return p, err
		}
		p.FetchedAt = time.Now()
		c.saveSnapshot(ctx, key, p)
		return p, nil
	})
	if err == nil || errors.IsSessionExpired(err) {
		return result, err
	}

	if stale, ok := lastGood(ctx, c, key, func(p *crm.Page[T]) { p.Stale = true }); ok {
		c.warnStale(op, loc.ID, err)
		return stale, err
	}
	return crm.Page[T]{}, err
}

// lastGood looks for the previous value under key, first in the cache
// (expired entries included) and then in the snapshot store.
func lastGood[V any](ctx context.Context, c *Client, key string, markStale func(*V)) (V, bool) {
	if v, _, ok := cache.PeekAs[V](c.cache, key); ok {
		markStale(&v)
		return v, true
	}
	var zero V
	if c.snapshots == nil {
		return zero, false
	}
	v, _, ok, err := snapshot.LoadJSON[V](ctx, c.snapshots, key)
	if err != nil {
		c.log.Warn("snapshot load failed", logger.ErrorFields("snapshot.load", err), logger.Fields(logger.FieldCacheKey, key))
		return zero, false
	}
	if !ok {
		return zero, false
	}
	markStale(&v)
	return v, true
}

func (c *Client) warnStale(op, locationID string, err error) {
	c.log.WithError(err).Warn("serving stale data", logger.Fields(
		logger.FieldOperation, op,
		logger.FieldLocation, locationID,
	))
}

func (c *Client) saveSnapshot(ctx context.Context, key string, v any) {
	if c.snapshots == nil {
		return
	}
	if err := snapshot.SaveJSON(ctx, c.snapshots, key, v); err != nil {
		c.log.Warn("snapshot save failed", logger.ErrorFields("snapshot.save", err), logger.Fields(logger.FieldCacheKey, key))
	}
}
