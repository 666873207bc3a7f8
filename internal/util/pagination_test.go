package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		page      int
		size      int
		wantFrom  int
		wantLimit int
	}{
		{"first page", 1, 5, 0, 5},
		{"third page", 3, 10, 20, 10},
		{"zero page", 0, 5, 0, 5},
		{"negative size", 2, -1, 5, 5},
		{"oversized", 1, 1000, 0, 5},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			from, limit := Calculate(tt.page, tt.size)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestParsePage(t *testing.T) {
	t.Parallel()

	page, size := ParsePage("", "")
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPageSize, size)

	page, size = ParsePage("4", "20")
	assert.Equal(t, 4, page)
	assert.Equal(t, 20, size)

	page, size = ParsePage("abc", "-3")
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPageSize, size)
}
