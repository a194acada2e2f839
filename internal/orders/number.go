package orders

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Order numbers look like FLO-20260828-001: prefix, date scope, 3-digit
// zero-padded sequence unique within the day. Days with more than 999 orders
// keep counting with a wider suffix; uniqueness is enforced by the database
// constraint either way.

func dayPrefix(prefix string, day time.Time) string {
	return fmt.Sprintf("%s-%s-", prefix, day.Format("20060102"))
}

func formatNumber(prefix string, day time.Time, seq int) string {
	return fmt.Sprintf("%s%03d", dayPrefix(prefix, day), seq)
}

// nextSequence parses the numeric suffix of the day's greatest existing
// number and increments it.
func nextSequence(lastNumber string) (int, error) {
	idx := strings.LastIndex(lastNumber, "-")
	if idx < 0 || idx == len(lastNumber)-1 {
		return 0, fmt.Errorf("malformed order number %q", lastNumber)
	}
	n, err := strconv.Atoi(lastNumber[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("malformed order number %q: %w", lastNumber, err)
	}
	return n + 1, nil
}
