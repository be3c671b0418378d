package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Jane Doe", CleanString("  Jane Doe \n"))
	assert.Equal(t, "jane@test.io", CleanString(" Jane@Test.io ", true))
	assert.Equal(t, "", CleanString("   "))
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("EAT", 3*60*60)
	start, end := DayBounds(time.Date(2024, time.February, 14, 10, 30, 0, 0, loc))

	assert.Equal(t, time.Date(2024, time.February, 14, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2024, time.February, 14, 23, 59, 59, 999000000, loc), end)
	assert.Equal(t, loc, start.Location())
}

func TestOrderBy(t *testing.T) {
	allowed := map[string]string{"name": "u.name", "created_at": "u.created_at"}

	tests := []struct {
		name      string
		orderings []DBOrdering
		want      string
	}{
		{"none", nil, ""},
		{"single", []DBOrdering{{Field: "name", Ascending: true}}, "u.name ASC"},
		{"many", []DBOrdering{{Field: "created_at"}, {Field: "name", Ascending: true}}, "u.created_at DESC, u.name ASC"},
		{"unknown fields skipped", []DBOrdering{{Field: "password_hash"}, {Field: "name"}}, "u.name DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OrderBy(tt.orderings, allowed))
		})
	}
}
