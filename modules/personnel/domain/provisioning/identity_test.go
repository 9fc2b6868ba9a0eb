package provisioning

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLegacyMasker(t *testing.T) {
	t.Parallel()

	m := LegacyMasker{}
	require.Equal(t, "gti3qx", m.Mask("0101701234500"))
	require.Equal(t, m.Mask("01017012345"), m.Mask(" 01017012345 "))
	require.Equal(t, "not-a-number", m.Mask("not-a-number"))
}

func TestIdentity_IsStable(t *testing.T) {
	t.Parallel()

	keyed, err := NewKeyedMasker([]byte("secret"))
	require.NoError(t, err)

	for _, m := range []Masker{LegacyMasker{}, keyed} {
		first := Identity("org1", m, "01017012345")
		for range 5 {
			require.Equal(t, first, Identity("org1", m, "01017012345"))
		}
		require.NotEqual(t, first, Identity("org2", m, "01017012345"))
		require.NotContains(t, first, "01017012345")
	}
}

func TestKeyedMasker_DependsOnKey(t *testing.T) {
	t.Parallel()

	a, err := NewKeyedMasker([]byte("key-a"))
	require.NoError(t, err)
	b, err := NewKeyedMasker([]byte("key-b"))
	require.NoError(t, err)

	require.Len(t, a.Mask("01017012345"), 32)
	require.NotEqual(t, a.Mask("01017012345"), b.Mask("01017012345"))
}

func TestNewMasker(t *testing.T) {
	t.Parallel()

	m, err := NewMasker("", nil)
	require.NoError(t, err)
	require.IsType(t, LegacyMasker{}, m)

	_, err = NewMasker(MaskingKeyed, nil)
	require.ErrorIs(t, err, ErrMaskingKeyRequired)

	_, err = NewMasker("rot13", nil)
	require.Error(t, err)
}
