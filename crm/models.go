package crm

import (
	"fmt"
	"strings"
	"time"
)

// Resource names a paged collection on the backend.
type Resource string

const (
	Contacts  Resource = "contacts"
	Jobs      Resource = "jobs"
	Tasks     Resource = "tasks"
	Estimates Resource = "estimates"
	Invoices  Resource = "invoices"
)

// Resources lists every paged collection.
var Resources = []Resource{Contacts, Jobs, Tasks, Estimates, Invoices}

// Endpoint returns the request path, e.g. "/jobs".
func (r Resource) Endpoint() string {
	return "/" + string(r)
}

// ParseResource accepts a resource name in any case.
func ParseResource(s string) (Resource, error) {
	r := Resource(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Resources {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown resource %q", s)
}

type Contact struct {
	ID         string `json:"id"`
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type Job struct {
	ID         string `json:"id"`
	LocationID string `json:"locationId"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	ContactID  string `json:"contactId,omitempty"`
}

type Task struct {
	ID         string `json:"id"`
	LocationID string `json:"locationId"`
	Title      string `json:"title"`
	Done       bool   `json:"done"`
}

type Estimate struct {
	ID         string  `json:"id"`
	LocationID string  `json:"locationId"`
	Number     string  `json:"number"`
	Total      float64 `json:"total"`
	Status     string  `json:"status"`
}

type Invoice struct {
	ID         string  `json:"id"`
	LocationID string  `json:"locationId"`
	Number     string  `json:"number"`
	AmountDue  float64 `json:"amountDue"`
	Status     string  `json:"status"`
}

// AnalyticsSummary is the dashboard headline numbers for one location.
type AnalyticsSummary struct {
	Revenue             float64 `json:"revenue"`
	JobsCompleted       int     `json:"jobsCompleted"`
	OpenEstimates       int     `json:"openEstimates"`
	OutstandingInvoices int     `json:"outstandingInvoices"`

	// Stale and FetchedAt mean the same as on Page.
	Stale     bool      `json:"stale,omitempty"`
	FetchedAt time.Time `json:"fetchedAt,omitzero"`
}
