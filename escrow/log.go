package escrow

import "github.com/btcsuite/btclog"

// log is the package-scoped subsystem logger, replaced by
// logctx.SetupLoggers at daemon startup. It defaults to a disabled
// logger so library consumers who never wire up logging get silence.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by this package.
// Satisfies logctx.Subsystem.
func UseLogger(logger btclog.Logger) {
	log = logger
}
