package types

// ParsedExcerpt is an excerpt read from a plain-text file. Tags are still
// names; they become ids once the importer resolves them.
type ParsedExcerpt struct {
	Excerpt
	TagNames []string `json:"tags"`
}

// ParseResult represents the output of parsing a plain-text excerpt file
type ParseResult struct {
	Entries []ParsedExcerpt
	// Tags holds every tag name used in the file, sorted and unique
	Tags []string

	// Blocks that could not become an excerpt
	Errors []ParseError
}

// ParseError represents a block that could not be parsed
type ParseError struct {
	File    string
	Line    int
	Message string
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	return pe.Message
}

// HasErrors returns true if any parsing errors occurred
func (pr *ParseResult) HasErrors() bool {
	return len(pr.Errors) > 0
}

// AddError adds a parsing error to the result
func (pr *ParseResult) AddError(file string, line int, msg string) {
	pr.Errors = append(pr.Errors, ParseError{
		File:    file,
		Line:    line,
		Message: msg,
	})
}
