// Package pgsys is the low-level interface to one PostgreSQL major
// version's internal ABI: struct layouts, constants and the function-like
// macros that have no linkable symbol.
//
// Each supported version has its own generated files, guarded by one of
// the build tags pg10, pg11, pg12, pg13 and pg14. Exactly one tag must be
// set. With none the package does not compile, and with more than one
// the version constants are declared twice.
//
// Files ending in _cgo.go additionally need the pgext tag and cgo. They
// wrap every host function in a C shim that turns the host's longjmp
// into an *ErrorData return, so a longjmp never crosses Go frames.
//
// Names are stable across versions. Where a capability exists only in
// some versions (FLOAT4PASSBYVAL before 13, ErrorData.Backtrace from 13,
// ToastCompressionId from 14) it is declared only in those versions'
// files, and code using it compiles only when such a version is selected.
package pgsys

//go:generate go run ../../cmd/pgxgen generate --config ../../pgxgen.yaml
