// Package cache is a time-bounded, single-flight result cache.
//
// Get returns a stored value while it is younger than its TTL. On a miss the
// producer runs once per key no matter how many callers arrive while it is
// in flight; all of them receive its result. Failed results are never
// stored, so the next call after a failure starts a fresh attempt.
//
//	jobs, err := cache.Fetch(ctx, c, key, 30*time.Second, func(ctx context.Context) (crm.Page[crm.Job], error) {
//	    return loadJobs(ctx)
//	})
//
// Entries are replaced on refresh and never deleted, so Peek can still
// return the last good value after it goes stale.
package cache
