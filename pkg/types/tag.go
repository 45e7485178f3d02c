package types

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

const (
	// DefaultTagID identifies the tag every excerpt belongs to
	DefaultTagID = "default"
	// DefaultTagName is the display name of the default tag ("all excerpts")
	DefaultTagName = "全部摘录"
)

// Tag is a user-defined category
type Tag struct {
	ID    string `json:"cid" validate:"required"`
	Name  string `json:"name" validate:"required,notblank"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
	Order int    `json:"orders"`
}

// IsDefault reports whether t is the protected default tag
func (t Tag) IsDefault() bool {
	return t.ID == DefaultTagID
}

// NewTag builds a tag with a random display color
func NewTag(id, name string, order int) Tag {
	return Tag{
		ID:    id,
		Name:  name,
		Color: RandomColor(),
		Order: order,
	}
}

// NewTagID returns a fresh tag identifier
func NewTagID() string {
	return uuid.NewString()
}

// RandomColor returns a random "#rrggbb" color
func RandomColor() string {
	return fmt.Sprintf("#%06x", rand.IntN(0x1000000))
}

// TagSelection is a tri-state tag list: unspecified, empty or populated.
// The zero value is unspecified.
type TagSelection struct {
	ids       []string
	specified bool
}

// KeepTags leaves an excerpt's associations untouched
func KeepTags() TagSelection {
	return TagSelection{}
}

// SetTags replaces an excerpt's associations. An empty call clears them.
func SetTags(ids ...string) TagSelection {
	return TagSelection{ids: append([]string{}, ids...), specified: true}
}

// Specified reports whether the selection replaces associations
func (s TagSelection) Specified() bool {
	return s.specified
}

// IDs returns a copy of the selected tag IDs
func (s TagSelection) IDs() []string {
	return append([]string{}, s.ids...)
}

// WithDefault returns the selected IDs, deduplicated, with the default tag
// appended when missing
func (s TagSelection) WithDefault() []string {
	return EnsureDefaultTag(s.ids)
}

// EnsureDefaultTag deduplicates ids preserving order and appends the
// default tag if it is not already present
func EnsureDefaultTag(ids []string) []string {
	seen := make(map[string]bool, len(ids)+1)
	out := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if !seen[DefaultTagID] {
		out = append(out, DefaultTagID)
	}
	return out
}
