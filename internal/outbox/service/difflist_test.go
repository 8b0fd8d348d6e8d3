package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffList(t *testing.T) {
	tests := []struct {
		name    string
		before  []string
		after   []string
		added   []string
		removed []string
	}{
		{
			name:  "AddOnly",
			after: []string{"wifi", "pool"},
			added: []string{"wifi", "pool"},
		},
		{
			name:    "RemoveOnly",
			before:  []string{"wifi", "pool"},
			after:   []string{"pool"},
			removed: []string{"wifi"},
		},
		{
			name:    "AddAndRemove",
			before:  []string{"wifi", "pool", "gym"},
			after:   []string{"gym", "parking", "wifi"},
			added:   []string{"parking"},
			removed: []string{"pool"},
		},
		{
			name:   "Unchanged",
			before: []string{"a", "b"},
			after:  []string{"b", "a"},
		},
		{
			name:    "DuplicatesIgnored",
			before:  []string{"a", "a", "b"},
			after:   []string{"c", "c", "b"},
			added:   []string{"c"},
			removed: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			added, removed := DiffList(tt.before, tt.after)
			assert.Equal(t, tt.added, added)
			assert.Equal(t, tt.removed, removed)
		})
	}
}

func TestDiffList_LargeListDeltaOnly(t *testing.T) {
	before := make([]string, 200)
	for i := range before {
		before[i] = "item-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}
	after := append(append([]string{}, before...), "item-new")

	added, removed := DiffList(before, after)

	assert.Equal(t, []string{"item-new"}, added)
	assert.Empty(t, removed)
}
