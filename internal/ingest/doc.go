// Package ingest orchestrates an ingest run for one project.
//
// Each active source is fetched, its raw posts are evaluated by the quality
// filter, accepted posts are normalized and handed to the upserter. Sources
// run concurrently on a bounded errgroup. The outcome of every record is
// tallied in a Summary:
//
//   - provider failures mark the source failed and the run continues
//   - records that cannot be normalized are counted as invalid
//   - duplicate URLs are counted as skipped
//   - storage failures stop the run
package ingest
