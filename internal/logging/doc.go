// Package logging provides structured logging for the callin runtime.
//
// It wraps Go's log/slog to emit JSON records. Child loggers carry the team,
// thread and join point they describe so activation transitions and dispatch
// traces can be filtered after the fact.
//
// # Thread Safety
//
// [Logger] is safe for concurrent use. Child loggers created via the With*
// methods share the underlying handler.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/callin", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	teamLog := logger.WithTeam("audit")
//	teamLog.Info("team registered", "bases", 3)
//
// Pass [NopLogger] wherever logging is not wanted, typically in tests.
package logging
