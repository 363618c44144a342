//go:build !pg10 && !pg11 && !pg12

package datum

// float4 is always passed by value from 13 on.
const float4ByVal = true
