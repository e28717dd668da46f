// Package snapshot keeps the last good answer for each cache key so a
// failed list call can still show something.
//
// Records outlive the in-memory cache: MemoryStore holds them for the life
// of the process, RedisStore across restarts. Payloads may carry customer
// contact details, so a store can be wrapped with Seal to encrypt them at
// rest with ChaCha20-Poly1305.
//
//	store := snapshot.Seal(snapshot.NewRedisStore(client, 24*time.Hour), sealer)
//	_ = snapshot.SaveJSON(ctx, store, key, page)
//	page, rec, ok, err := snapshot.LoadJSON[crm.Page[crm.Job]](ctx, store, key)
package snapshot
