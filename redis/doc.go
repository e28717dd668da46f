// Package redis wraps go-redis for the snapshot store.
//
// Keys are namespaced under Config.KeyPrefix. TypedStore adds JSON
// encoding on top of the raw client:
//
//	client, err := redis.New(redis.Config{Enabled: true, Addr: "localhost:6379"}, log)
//	store := redis.NewTypedStore[Record](client, "snapshots", 24*time.Hour)
//	err = store.Save(ctx, key, &rec)
package redis
