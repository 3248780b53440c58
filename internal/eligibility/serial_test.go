package eligibility

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSerial(t *testing.T) {
	re := regexp.MustCompile(`^CCA-[0-9A-F]{8}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s := NewSerial()
		assert.Regexp(t, re, s)
		seen[s] = true
	}
	assert.Greater(t, len(seen), 95)
}

func TestRequiredWeeks(t *testing.T) {
	s := &Service{program: Program{TotalWeeks: 3}}
	assert.Equal(t, []int64{1, 2, 3}, s.requiredWeeks())
}
