// Package types provides shared type definitions for the excerpts notebook.
//
// This package defines the domain records that cross the storage boundary:
// tags, excerpts, the import/export snapshot and the errors that signal
// user-input violations.
//
// # Core Types
//
// Tag is a category a user files excerpts under. The tag with ID "default"
// always exists and stands for "all excerpts":
//
//	tag := types.Tag{
//	    ID:    "t1",
//	    Name:  "Fiction",
//	    Color: "#3fa1d1",
//	    Order: 1,
//	}
//
// Excerpt is a short passage of text with its provenance and tag IDs:
//
//	excerpt := types.Excerpt{
//	    Content: "是的，我很重要。",
//	    Author:  "毕淑敏",
//	    Title:   "我很重要",
//	    TagIDs:  []string{"t1"},
//	}
//
// # Tag Selection
//
// Updates distinguish "leave tags alone" from "clear all tags". TagSelection
// models the three states explicitly:
//
//	types.KeepTags()          // unspecified: associations untouched
//	types.SetTags()           // empty: reset to {default}
//	types.SetTags("t1", "t2") // populated: replace
//
// # Merge Policy
//
// MergeExcerpt applies the canonical update rule shared by creation, editing
// and import: a non-empty new field wins, otherwise the old value (or its
// fallback sentinel) is kept, and the default tag is always present.
package types
