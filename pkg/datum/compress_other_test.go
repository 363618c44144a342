//go:build !pg14

package datum

import (
	"testing"

	"github.com/woxQAQ/pgxbridge/pkg/host"
)

func TestLZ4RequiresVersion14(t *testing.T) {
	_, c := setup(t)
	_, err := c.EncodeCompressed("abcabcabcabcabcabcabcabcabcabcabcabcabc", TypeText, LZ4)
	requireCodecError(t, err, host.FeatureNotSupported)
}
