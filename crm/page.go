package crm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kbukum/crmkit/errors"
)

// Page is one page of a collection.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
	Page    int  `json:"page"`
	Size    int  `json:"size"`
	// Stale marks a last-known-good page served after a failed call.
	Stale bool `json:"stale,omitempty"`
	// FetchedAt is when the backend produced the page.
	FetchedAt time.Time `json:"fetchedAt,omitzero"`
}

// Offset returns the from query value for a 1-based page.
func Offset(page, size int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * size
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Items   json.RawMessage `json:"items"`
	Total   *int            `json:"total"`
	HasMore *bool           `json:"hasMore"`
}

// DecodePage decodes a list body. Accepted shapes:
//
//	{"data": [...], "total": n, "hasMore": b}
//	{"items": [...], "total": n}
//	[...]
//
// A missing total is taken as a lower bound (offset + items received).
// A missing hasMore is derived from total when given, else from whether
// the page came back full.
func DecodePage[T any](body []byte, page, size int) (Page[T], error) {
	p := Page[T]{Page: max(page, 1), Size: size}

	trimmed := bytes.TrimSpace(body)
	var (
		raw     json.RawMessage
		total   *int
		hasMore *bool
	)
	switch {
	case len(trimmed) == 0:
		return p, errors.Decode(fmt.Errorf("empty body"))
	case trimmed[0] == '[':
		raw = trimmed
	case trimmed[0] == '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return p, errors.Decode(err)
		}
		raw = env.Data
		if (len(raw) == 0 || bytes.Equal(raw, []byte("null"))) && len(env.Items) > 0 {
			raw = env.Items
		}
		if len(raw) == 0 {
			return p, errors.Decode(fmt.Errorf("no data or items array in response"))
		}
		total, hasMore = env.Total, env.HasMore
	default:
		return p, errors.Decode(fmt.Errorf("unexpected list body starting with %q", trimmed[0]))
	}

	if !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := json.Unmarshal(raw, &p.Items); err != nil {
			return p, errors.Decode(err)
		}
	}
	if p.Items == nil {
		p.Items = []T{}
	}

	offset := Offset(page, size)
	switch {
	case total != nil:
		p.Total = *total
	default:
		p.Total = offset + len(p.Items)
	}
	switch {
	case hasMore != nil:
		p.HasMore = *hasMore
	case total != nil:
		p.HasMore = offset+len(p.Items) < p.Total
	default:
		p.HasMore = size > 0 && len(p.Items) == size
	}
	return p, nil
}
