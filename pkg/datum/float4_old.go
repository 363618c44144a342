//go:build pg10 || pg11 || pg12

package datum

import "github.com/woxQAQ/pgxbridge/pkg/pgsys"

const float4ByVal = pgsys.FLOAT4PASSBYVAL
