package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectIsOrderIndependent(t *testing.T) {
	a, err := Object(map[string]any{"country": "DE", "day": 1})
	require.NoError(t, err)
	b, err := Object(map[string]any{"day": 1, "country": "DE"})
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 16)

	c, err := Object(map[string]any{"country": "FR", "day": 1})
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestObjectUnsupported(t *testing.T) {
	_, err := Object(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
}

func TestString(t *testing.T) {
	require.Equal(t, String("orders"), String("orders"))
	require.NotEqual(t, String("orders"), String("sessions"))
}

func TestUID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := UID()
		require.Len(t, id, 26)
		require.False(t, seen[id])
		seen[id] = true
	}
}
