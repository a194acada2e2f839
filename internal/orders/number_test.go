package orders

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	day := time.Date(2026, 8, 28, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "FLO-20260828-001", formatNumber("FLO", day, 1))
	assert.Equal(t, "FLO-20260828-042", formatNumber("FLO", day, 42))
	assert.Equal(t, "FLO-20260828-999", formatNumber("FLO", day, 999))
	// beyond 999 the suffix widens; uniqueness still holds
	assert.Equal(t, "FLO-20260828-1000", formatNumber("FLO", day, 1000))
}

func TestNextSequence(t *testing.T) {
	t.Run("increments parsed suffix", func(t *testing.T) {
		n, err := nextSequence("FLO-20260828-007")
		require.NoError(t, err)
		assert.Equal(t, 8, n)
	})

	t.Run("wide suffix", func(t *testing.T) {
		n, err := nextSequence("FLO-20260828-1042")
		require.NoError(t, err)
		assert.Equal(t, 1043, n)
	})

	t.Run("malformed numbers are rejected", func(t *testing.T) {
		_, err := nextSequence("FLO-20260828-")
		assert.Error(t, err)
		_, err = nextSequence("garbage")
		assert.Error(t, err)
	})
}

// Mirrors NextNumber's ORDER BY length(order_number) DESC, order_number DESC
// over a day that crossed the 3-digit boundary. Plain text ordering would put
// -999 above -1000 and the next generated number would collide forever.
func TestDayMaxOrderingPastThreeDigits(t *testing.T) {
	day := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	numbers := []string{
		formatNumber("FLO", day, 1000),
		formatNumber("FLO", day, 998),
		formatNumber("FLO", day, 999),
	}
	sort.Slice(numbers, func(i, j int) bool {
		if len(numbers[i]) != len(numbers[j]) {
			return len(numbers[i]) > len(numbers[j])
		}
		return numbers[i] > numbers[j]
	})

	assert.Equal(t, "FLO-20260828-1000", numbers[0])

	seq, err := nextSequence(numbers[0])
	require.NoError(t, err)
	assert.Equal(t, "FLO-20260828-1001", formatNumber("FLO", day, seq))
}

func TestDayPrefixScopesByDate(t *testing.T) {
	a := dayPrefix("FLO", time.Date(2026, 8, 28, 23, 59, 0, 0, time.UTC))
	b := dayPrefix("FLO", time.Date(2026, 8, 29, 0, 1, 0, 0, time.UTC))
	assert.NotEqual(t, a, b)
	assert.Equal(t, "FLO-20260828-", a)
}
