package policy

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the package-wide logger used by this package.
// Satisfies logctx.Subsystem.
func UseLogger(logger btclog.Logger) {
	log = logger
}
