package trackid

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerate_Format(t *testing.T) {
	id := Generate()
	require.True(t, strings.HasPrefix(id, "GAE"))
	require.Greater(t, len(id), len("GAE")+suffixLen)

	suffix := id[len(id)-suffixLen:]
	for _, c := range suffix {
		require.Contains(t, suffixAlphabet, string(c))
	}
	// в суффиксе нет неоднозначных символов
	require.NotContains(t, suffix, "0")
	require.NotContains(t, suffix, "O")
	require.NotContains(t, suffix, "1")
	require.NotContains(t, suffix, "I")
}

func TestGenerate_SortableByTime(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := generateAt(t0)
	b := generateAt(t0.Add(time.Second))
	require.Less(t, a[:len(a)-suffixLen], b[:len(b)-suffixLen])
}

func TestGenerate_NoObviousCollisions(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 1000; i++ {
		id := Generate()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}
