//go:build pgext && cgo

package pgbackend

/*
#include <stdint.h>
*/
import "C"

import (
	"fmt"
	"os"
	"runtime/cgo"
)

// pgxbridgeResetCallback runs a Go reset callback from the server's
// context reset. A panic must not unwind into the server, so it is
// reported on stderr and dropped.
//
//export pgxbridgeResetCallback
func pgxbridgeResetCallback(handle C.uintptr_t) {
	h := cgo.Handle(handle)
	fn := h.Value().(func())
	h.Delete()
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "pgxbridge: reset callback panicked: %v\n", r)
		}
	}()
	fn()
}
