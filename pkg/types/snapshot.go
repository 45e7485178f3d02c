package types

// Snapshot is the JSON document exchanged by import and export
type Snapshot struct {
	Tags       []Tag     `json:"tags"`
	Excerpts   []Excerpt `json:"excerpts"`
	ExportDate string    `json:"export_date,omitempty"`
}
