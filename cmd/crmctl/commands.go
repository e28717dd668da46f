package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/crmkit/client"
	"github.com/kbukum/crmkit/crm"
	"github.com/kbukum/crmkit/observability"
)

func newListCmd(a *app, opts *rootOptions) *cobra.Command {
	var page, size int
	cmd := &cobra.Command{
		Use:         "list <resource>",
		Short:       "List one page of contacts, jobs, tasks, estimates or invoices",
		Args:        cobra.ExactArgs(1),
		ValidArgs:   []string{"contacts", "jobs", "tasks", "estimates", "invoices"},
		Annotations: withClient,
		RunE: func(cmd *cobra.Command, args []string) error {
			resource, err := crm.ParseResource(args[0])
			if err != nil {
				return err
			}
			result, listErr := fetch(cmd, a.client, resource, page, size)
			if result == nil {
				return listErr
			}
			if err := render(cmd.OutOrStdout(), opts.output, result); err != nil {
				return err
			}
			if listErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: showing last known data: %v\n", listErr)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number (1-based)")
	cmd.Flags().IntVarP(&size, "size", "s", client.DefaultPageSize, "page size")
	return cmd
}

// listing is the rendered form of any page.
type listing struct {
	Resource string     `json:"resource"`
	Location string     `json:"location"`
	Page     int        `json:"page"`
	Size     int        `json:"size"`
	Total    int        `json:"total"`
	HasMore  bool       `json:"hasMore"`
	Stale    bool       `json:"stale,omitempty"`
	Columns  []string   `json:"-"`
	Rows     [][]string `json:"-"`
	Items    any        `json:"items"`
}

// fetch returns a nil listing only when there is nothing to show.
func fetch(cmd *cobra.Command, c *client.Client, r crm.Resource, page, size int) (*listing, error) {
	ctx := cmd.Context()
	switch r {
	case crm.Contacts:
		p, err := c.Contacts(ctx, page, size)
		return toListing(c, r, p, err, []string{"ID", "NAME", "EMAIL", "PHONE"}, func(v crm.Contact) []string {
			return []string{v.ID, v.Name, v.Email, v.Phone}
		})
	case crm.Jobs:
		p, err := c.Jobs(ctx, page, size)
		return toListing(c, r, p, err, []string{"ID", "TITLE", "STATUS", "CONTACT"}, func(v crm.Job) []string {
			return []string{v.ID, v.Title, v.Status, v.ContactID}
		})
	case crm.Tasks:
		p, err := c.Tasks(ctx, page, size)
		return toListing(c, r, p, err, []string{"ID", "TITLE", "DONE"}, func(v crm.Task) []string {
			return []string{v.ID, v.Title, fmt.Sprint(v.Done)}
		})
	case crm.Estimates:
		p, err := c.Estimates(ctx, page, size)
		return toListing(c, r, p, err, []string{"ID", "NUMBER", "TOTAL", "STATUS"}, func(v crm.Estimate) []string {
			return []string{v.ID, v.Number, fmt.Sprintf("%.2f", v.Total), v.Status}
		})
	default:
		p, err := c.Invoices(ctx, page, size)
		return toListing(c, r, p, err, []string{"ID", "NUMBER", "AMOUNT DUE", "STATUS"}, func(v crm.Invoice) []string {
			return []string{v.ID, v.Number, fmt.Sprintf("%.2f", v.AmountDue), v.Status}
		})
	}
}

func toListing[T any](c *client.Client, r crm.Resource, p crm.Page[T], err error, columns []string, row func(T) []string) (*listing, error) {
	if err != nil && !p.Stale {
		return nil, err
	}
	l := &listing{
		Resource: string(r),
		Location: c.Location().ID,
		Page:     p.Page,
		Size:     p.Size,
		Total:    p.Total,
		HasMore:  p.HasMore,
		Stale:    p.Stale,
		Columns:  columns,
		Items:    p.Items,
	}
	for _, item := range p.Items {
		l.Rows = append(l.Rows, row(item))
	}
	return l, err
}

func render(w io.Writer, format string, l *listing) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(l)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	writeRow(tw, l.Columns)
	for _, r := range l.Rows {
		writeRow(tw, r)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	state := ""
	if l.Stale {
		state = " (stale)"
	}
	_, err := fmt.Fprintf(w, "\n%s @ %s: page %d, %d of %d%s\n", l.Resource, l.Location, l.Page, len(l.Rows), l.Total, state)
	return err
}

func writeRow(w io.Writer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
}

func newHealthCmd(a *app, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:         "health",
		Short:       "Probe the backend and report connection health",
		Args:        cobra.NoArgs,
		Annotations: withClient,
		RunE: func(cmd *cobra.Command, _ []string) error {
			probeErr := a.client.ForceReconnect(cmd.Context())
			report := a.client.Health(cmd.Context())

			if opts.output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "status: %s (checked %s)\n", report.Status, report.CheckedAt.Format(time.TimeOnly))
				for _, c := range report.Components {
					if report.Healthy() {
						fmt.Fprintf(out, "  %s: %s\n", c.Name, c.Status)
						continue
					}
					fmt.Fprintf(out, "  %s: %s %s\n", c.Name, c.Status, c.Message)
					for k, v := range c.Details {
						fmt.Fprintf(out, "    %s=%s\n", k, v)
					}
				}
			}
			switch {
			case probeErr != nil:
				return fmt.Errorf("backend unhealthy: %w", probeErr)
			case report.Status == observability.HealthStatusDown:
				return fmt.Errorf("backend unhealthy")
			}
			return nil
		},
	}
}

func newWatchCmd(a *app, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "watch",
		Short:       "Run the health monitor and print connection changes until interrupted",
		Args:        cobra.NoArgs,
		Annotations: withClient,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			changes := a.client.WatchConnection(ctx)
			h := a.client.StartHealthMonitor(ctx)
			defer h.Stop()

			snap := a.client.ConnectionState()
			fmt.Fprintf(out, "%s  %-12s location=%s\n", time.Now().Format(time.TimeOnly), snap.State, a.client.Location().ID)
			for {
				select {
				case <-ctx.Done():
					return nil
				case ch, ok := <-changes:
					if !ok {
						return nil
					}
					line := fmt.Sprintf("%s  %-12s errors=%d", time.Now().Format(time.TimeOnly), ch.To, ch.Snapshot.ErrorCount)
					if ch.Snapshot.LastError != nil {
						line += "  " + ch.Snapshot.LastError.Error()
					}
					fmt.Fprintln(out, line)
				}
			}
		},
	}
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "health check interval (default from config)")
	return cmd
}
