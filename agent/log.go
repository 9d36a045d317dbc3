package agent

import "github.com/btcsuite/btclog"

// log is the package-scoped subsystem logger, replaced by
// logctx.SetupLoggers at daemon startup.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by this package.
// Satisfies logctx.Subsystem.
func UseLogger(logger btclog.Logger) {
	log = logger
}
