// Package logger builds *slog.Logger instances for castflow services and holds
// the attribute helpers used to keep log keys consistent across packages.
//
// New applies functional options (format, level, output, static attributes,
// context extractors) and wraps the chosen slog handler with a decorator that
// pulls request-scoped values, such as the request id, out of the context on
// every record.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "castflow"),
//	    logger.WithContextValue("request_id", requestIDKey{}),
//	)
//	log.LogAttrs(ctx, slog.LevelInfo, "transition committed",
//	    logger.ApplicationID(app.ID),
//	    logger.Transition("shortlist"),
//	    logger.State("shortlisted"),
//	)
package logger
