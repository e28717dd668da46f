// Package client is the public surface of crmkit.
//
// A Client ties the pieces together: list and analytics calls go through
// the TTL cache, keyed and pinned to the active location, and on a miss
// through the retrying transport, which reports every attempt to the
// connection state machine. The health monitor watches that machine.
//
//	c, err := client.New(client.Config{
//	    BaseURL:  "https://crm.example.com/api",
//	    Location: "guilford",
//	})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	h := c.StartHealthMonitor(ctx)
//	defer h.Stop()
//
//	jobs, err := c.Jobs(ctx, 1, 20)
//
// List calls that fail for any reason other than an expired session return
// the last good page for the same key, with Stale set, together with the
// error.
package client
