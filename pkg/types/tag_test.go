package types

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagSelection(t *testing.T) {
	keep := KeepTags()
	assert.False(t, keep.Specified())
	assert.Empty(t, keep.IDs())

	empty := SetTags()
	assert.True(t, empty.Specified())
	assert.Empty(t, empty.IDs())
	assert.Equal(t, []string{DefaultTagID}, empty.WithDefault())

	ids := []string{"a", "b"}
	set := SetTags(ids...)
	ids[0] = "changed"
	assert.Equal(t, []string{"a", "b"}, set.IDs())
	assert.Equal(t, []string{"a", "b", DefaultTagID}, set.WithDefault())
}

func TestEnsureDefaultTag(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{DefaultTagID}},
		{"appends", []string{"a"}, []string{"a", DefaultTagID}},
		{"keeps position", []string{DefaultTagID, "a"}, []string{DefaultTagID, "a"}},
		{"dedupes and drops empty", []string{"a", "", "a", "b"}, []string{"a", "b", DefaultTagID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EnsureDefaultTag(tt.in))
		})
	}
}

func TestNewTag(t *testing.T) {
	tag := NewTag("id", "name", 3)
	assert.Equal(t, 3, tag.Order)
	assert.Regexp(t, regexp.MustCompile(`^#[0-9a-f]{6}$`), tag.Color)
	assert.False(t, tag.IsDefault())
	assert.NotEqual(t, NewTagID(), NewTagID())
}
