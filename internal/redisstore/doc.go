// Package redisstore provides the Redis-backed store implementations used
// when multiple pipeline instances share state. Ledger applies and throttle
// accounting run as Lua scripts so concurrent instances never interleave a
// partial write, alert broadcast fans out over pub/sub, and a leased leader
// key elects the single instance that runs the periodic engines.
package redisstore
