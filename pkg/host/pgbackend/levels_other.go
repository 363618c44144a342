//go:build !pg14

package pgbackend

import "github.com/woxQAQ/pgxbridge/pkg/pgsys"

// Hosts before 14 have no client-only warning; it is sent as a warning.
const warningClientOnly = pgsys.WARNING
