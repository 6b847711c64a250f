package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeValueNumbers(t *testing.T) {
	a, err := DecodeValue("", []byte(`42`))
	require.NoError(t, err)

	for _, raw := range []string{`42.0`, `4.2e1`} {
		b, err := DecodeValue("", []byte(raw))
		require.NoError(t, err)
		require.True(t, a.Equal(b), "%s differs from 42", raw)
	}

	c, err := DecodeValue("", []byte(`42.5`))
	require.NoError(t, err)
	require.False(t, a.Equal(c))
}

func TestDecodeValueTrailingInput(t *testing.T) {
	for _, raw := range []string{`42 trailing`, `{"v":42} {}`} {
		_, err := DecodeValue("", []byte(raw))
		require.Error(t, err, raw)
	}
}
