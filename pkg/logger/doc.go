// Package logger provides the structured logging interface used across reelscout.
//
// It wraps zerolog behind a small Logger interface so components can take a
// logger as a dependency and tests can swap in a NewTestLogger or NewNopLogger.
//
// Basic Usage:
//
//	err := logger.Initialize(&cfg.Logging)
//
//	logger.Info("ingest started")
//	logger.WithField("source", "competitor:shopname").Info("fetched")
//	logger.WithError(err).Error("upsert failed")
//
// Components usually hold their own scoped logger:
//
//	log := logger.GetLogger().WithField("component", "reconciler")
//	log.InfoWithFields("reattributed", map[string]interface{}{
//	    "source_id": 7,
//	    "rows":      12,
//	})
package logger
