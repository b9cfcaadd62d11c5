/*
Package log provides structured logging via zerolog: a global logger
configured once at startup (Init), plus component- and
aggregate-scoped child loggers for command handlers and the
projection writer to attach context to.

# Levels and output

Init sets the global level (debug/info/warn/error) and chooses JSON or
console (human-readable) output. Console output is the default
(Config.JSONOutput false); the CLI switches to JSON with --log-json.

# Context loggers

WithComponent scopes a logger to a package-level concern ("projection",
"manager"). WithAggregate and WithCommand scope a logger to a single
aggregate instance or command invocation, so a bootstrap run's full
log can be filtered down to one certificate's or one command's
lifecycle without grepping correlation IDs by hand.

	certLog := log.WithAggregate(certID.String(), "certificate")
	certLog.Info().Msg("issued")

	cmdLog := log.WithCommand(cmd.ID.String(), cmd.CorrelationID.String())
	cmdLog.Warn().Msg("policy denied")
*/
package log
