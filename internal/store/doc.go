// Package store is the gorm-backed persistence layer: projects, the source
// registry, the reel upserter and the reporting readers.
//
// Reels are unique by url. Upsert relies on the unique index and
// ON CONFLICT DO NOTHING, so two concurrent ingest runs that discover the
// same post store exactly one row and the loser observes a Skipped outcome.
package store
