// Package cache implements the two-level read-through cache that sits in
// front of catalog reads.
//
// It has three parts:
//
// 1. Store - a bounded in-process key/value store
//   - per-key TTL, checked lazily on read and swept periodically
//   - least-recently-accessed eviction once MaxSize is reached
//   - hit/miss/set/delete/eviction counters
//
// 2. Remote - the contract of the shared network tier. Implementations
//    never return errors; failures degrade to a miss or a false result.
//
// 3. Coordinator - composes both tiers behind one API and owns the key
//    layout and the per-category TTL policy.
//
// Keys have the form <category>:<identifier>[:<param>:<value>|...] with
// parameters sorted by name. Invalidation is prefix based: writers only know
// which category they touched, so every cached variant under that prefix is
// dropped.
//
// Usage:
//
//	store := cache.NewStore(1000)
//	coord := cache.NewCoordinator(store, redisClient, cache.WithLogger(logger))
//
//	key := cache.GenerateKey(cache.CategoryProducts, "list", cache.Params{"page": 2})
//	if raw, ok := coord.Get(ctx, key); ok {
//		return raw
//	}
//	coord.Set(ctx, key, products, 0)
//
//	coord.InvalidateByPattern(ctx, "products:list")
package cache
