package walletdb

import "github.com/abesuite/abec/abelog"

var log = abelog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger abelog.Logger) {
	log = logger
}
