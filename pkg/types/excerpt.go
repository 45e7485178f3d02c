package types

import (
	"time"

	"github.com/google/uuid"
)

// Placeholders stored when an excerpt has no source, title or author
const (
	UnknownSource = "未知" // unknown
	NoTitle       = "无"  // none
	AnonAuthor    = "佚名" // anonymous
)

// TimeLayout is the fixed-width ISO-8601 layout used for created_at so that
// lexical order matches chronological order
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Excerpt is a stored passage of text
type Excerpt struct {
	ID        string   `json:"cid"`
	Content   string   `json:"content" validate:"required,notblank"`
	Source    string   `json:"source"`
	Title     string   `json:"title"`
	Author    string   `json:"author"`
	Note      string   `json:"note"`
	CreatedAt string   `json:"created_at"`
	TagIDs    []string `json:"tag_cids"`
}

// CreatedTime parses CreatedAt. The zero time is returned for values that
// are not ISO-8601.
func (e Excerpt) CreatedTime() time.Time {
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, e.CreatedAt); err == nil {
			return t
		}
	}
	return time.Time{}
}

// HasTag reports whether the excerpt carries tagID
func (e Excerpt) HasTag(tagID string) bool {
	for _, id := range e.TagIDs {
		if id == tagID {
			return true
		}
	}
	return false
}

// ExcerptPatch carries a partial update. Empty strings leave the stored
// value unchanged.
type ExcerptPatch struct {
	Content string
	Source  string
	Title   string
	Author  string
	Note    string
	Tags    TagSelection
}

// Empty reports whether the patch changes no column
func (p ExcerptPatch) Empty() bool {
	return p.Content == "" && p.Source == "" && p.Title == "" && p.Author == "" && p.Note == ""
}

// NewExcerptID returns a fresh excerpt identifier
func NewExcerptID() string {
	return uuid.NewString()
}

// MergeExcerpt applies the canonical update policy. When old is nil the
// result is a new record: an ID and timestamp are assigned if missing and
// the placeholders fill empty source, title and author. Otherwise every
// non-empty field of next overwrites old. The default tag is always present
// in the result.
func MergeExcerpt(next Excerpt, old *Excerpt, now time.Time) Excerpt {
	if old == nil {
		out := next
		if out.ID == "" {
			out.ID = NewExcerptID()
		}
		out.Source = firstNonEmpty(next.Source, UnknownSource)
		out.Title = firstNonEmpty(next.Title, NoTitle)
		out.Author = firstNonEmpty(next.Author, AnonAuthor)
		out.CreatedAt = firstNonEmpty(next.CreatedAt, now.Format(TimeLayout))
		out.TagIDs = EnsureDefaultTag(next.TagIDs)
		return out
	}

	out := *old
	out.Content = firstNonEmpty(next.Content, old.Content)
	out.Source = firstNonEmpty(next.Source, old.Source, UnknownSource)
	out.Title = firstNonEmpty(next.Title, old.Title, NoTitle)
	out.Author = firstNonEmpty(next.Author, old.Author, AnonAuthor)
	out.Note = firstNonEmpty(next.Note, old.Note)
	out.CreatedAt = firstNonEmpty(next.CreatedAt, old.CreatedAt, now.Format(TimeLayout))
	if len(next.TagIDs) > 0 {
		out.TagIDs = EnsureDefaultTag(next.TagIDs)
	} else {
		out.TagIDs = EnsureDefaultTag(old.TagIDs)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
