package adjust_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-tarif/internal/adjust"
)

func TestOverrideSetAbsolute(t *testing.T) {
	set := adjust.NewOverrideSet()
	id := uuid.New()

	require.NoError(t, set.SetAbsolute(id, dec(t, "152000")))
	got, ok := set.Get(id)
	require.True(t, ok)
	require.True(t, got.Equal(dec(t, "152000")))
	require.Equal(t, 1, set.Len())

	err := set.SetAbsolute(id, dec(t, "-1"))
	require.ErrorIs(t, err, adjust.ErrInvalidOverride)
}

func TestOverrideSetFromPercent(t *testing.T) {
	set := adjust.NewOverrideSet()
	id := uuid.New()

	// 150000 * 1.031 = 154650, already whole.
	value, err := set.SetFromPercent(id, dec(t, "3.1"), dec(t, "150000"))
	require.NoError(t, err)
	require.True(t, value.Equal(dec(t, "154650")))

	// 999 * 1.025 = 1023.975 rounds half-up to 1024.
	value, err = set.SetFromPercent(id, dec(t, "2.5"), dec(t, "999"))
	require.NoError(t, err)
	require.True(t, value.Equal(dec(t, "1024")))

	_, err = set.SetFromPercent(id, dec(t, "-150"), dec(t, "1000"))
	require.ErrorIs(t, err, adjust.ErrInvalidOverride)
}

func TestOverrideSetClear(t *testing.T) {
	set := adjust.NewOverrideSet()
	id := uuid.New()
	require.NoError(t, set.SetAbsolute(id, dec(t, "100")))
	set.Clear(id)
	_, ok := set.Get(id)
	require.False(t, ok)
	require.Equal(t, 0, set.Len())
}

func TestOverrideSetNilSafe(t *testing.T) {
	var set *adjust.OverrideSet
	_, ok := set.Get(uuid.New())
	require.False(t, ok)
	require.Equal(t, 0, set.Len())
}
