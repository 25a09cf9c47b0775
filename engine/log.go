package engine

import "github.com/abesuite/abec/abelog"

var log = abelog.Disabled

// UseLogger sets the package-wide logger.  Any calls to this function must be
// made before the client is used (it is not concurrent safe).
func UseLogger(logger abelog.Logger) {
	log = logger
}
