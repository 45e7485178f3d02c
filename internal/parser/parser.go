package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/dshills/excerpts-mcp/pkg/types"
)

// Line prefixes of the plain-text excerpt format
const (
	prefixTag        = "#"
	prefixSource     = "@"
	prefixAuthor     = "作者："
	prefixAuthorEN   = "author:"
	prefixNote       = "相关："
	prefixNoteEN     = "note:"
	titleOpen        = "《"
	titleClose       = "》"
	maxLineBytes     = 1 << 20
	initialLineBytes = 64 * 1024
)

var blankLines = regexp.MustCompile(`\n\s*\n`)

// Parser reads blank-line separated excerpt blocks
type Parser struct{}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{}
}

// ParseFile parses an excerpt text file
func (p *Parser) ParseFile(filePath string) (*types.ParseResult, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return p.Parse(f, filePath)
}

// Parse parses excerpt blocks from r. name labels parse errors.
func (p *Parser) Parse(r io.Reader, name string) (*types.ParseResult, error) {
	var b strings.Builder
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, initialLineBytes), maxLineBytes)
	for sc.Scan() {
		b.WriteString(strings.TrimSuffix(sc.Text(), "\r"))
		b.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	text := strings.TrimPrefix(b.String(), "\ufeff")

	result := &types.ParseResult{Entries: []types.ParsedExcerpt{}}
	allTags := map[string]bool{}

	line := 1
	rest := text
	for {
		loc := blankLines.FindStringIndex(rest)
		block := rest
		if loc != nil {
			block = rest[:loc[0]]
		}
		start := line + leadingNewlines(block)

		if strings.TrimSpace(block) != "" {
			entry, ok := parseBlock(block)
			if ok {
				result.Entries = append(result.Entries, entry)
				for _, t := range entry.TagNames {
					allTags[t] = true
				}
			} else {
				result.AddError(name, start, "block has no content")
			}
		}

		if loc == nil {
			break
		}
		line += strings.Count(rest[:loc[1]], "\n")
		rest = rest[loc[1]:]
	}

	result.Tags = make([]string, 0, len(allTags))
	for t := range allTags {
		result.Tags = append(result.Tags, t)
	}
	sort.Strings(result.Tags)
	return result, nil
}

// parseBlock turns one block into an excerpt. Blocks without content lines
// are rejected.
func parseBlock(block string) (types.ParsedExcerpt, bool) {
	var entry types.ParsedExcerpt
	var content []string
	seen := map[string]bool{}

	for _, raw := range strings.Split(block, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, prefixAuthor):
			entry.Author = strings.TrimSpace(strings.TrimPrefix(line, prefixAuthor))
		case hasPrefixFold(line, prefixAuthorEN):
			entry.Author = strings.TrimSpace(line[len(prefixAuthorEN):])
		case strings.HasPrefix(line, prefixNote):
			entry.Note = strings.TrimSpace(strings.TrimPrefix(line, prefixNote))
		case hasPrefixFold(line, prefixNoteEN):
			entry.Note = strings.TrimSpace(line[len(prefixNoteEN):])
		case strings.HasPrefix(line, titleOpen) && strings.HasSuffix(line, titleClose):
			entry.Title = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(line, titleOpen), titleClose))
		case strings.HasPrefix(line, prefixSource):
			entry.Source = strings.TrimSpace(strings.TrimPrefix(line, prefixSource))
		case strings.HasPrefix(line, prefixTag):
			for _, tag := range strings.Split(line, prefixTag) {
				tag = strings.TrimSpace(tag)
				if tag != "" && !seen[tag] {
					seen[tag] = true
					entry.TagNames = append(entry.TagNames, tag)
				}
			}
		default:
			content = append(content, line)
		}
	}

	entry.Content = strings.Join(content, "\n")
	return entry, entry.Content != ""
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func leadingNewlines(s string) int {
	return len(s) - len(strings.TrimLeft(s, "\n"))
}
