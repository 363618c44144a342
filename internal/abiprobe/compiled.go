//go:build pg10 || pg11 || pg12 || pg13 || pg14

package abiprobe

import "github.com/woxQAQ/pgxbridge/pkg/pgsys"

// Compiled returns the settings of the binding version selected by the
// build tags.
func Compiled() Settings {
	return Settings{
		VersionNum:          pgsys.PG_VERSION_NUM,
		MaxFunctionArgs:     pgsys.FUNC_MAX_ARGS,
		MaxIndexKeys:        pgsys.INDEX_MAX_KEYS,
		MaxIdentifierLength: pgsys.NAMEDATALEN - 1,
		BlockSize:           pgsys.BLCKSZ,
	}
}
