// Package parser reads excerpts from plain-text files.
//
// A file holds one excerpt per block; blocks are separated by blank lines.
// Within a block every line is trimmed and classified by its prefix:
//
//	#诗歌#唐代          tags, '#'-separated, may repeat across lines
//	@唐诗三百首          source
//	《静夜思》           title (the whole line)
//	作者：李白           author ("author:" also accepted)
//	相关：思乡           note ("note:" also accepted)
//	床前明月光           anything else is content, joined with newlines
//
// # Basic Usage
//
//	p := parser.New()
//	result, err := p.ParseFile("quotes.txt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, e := range result.Entries {
//	    fmt.Println(e.Title, e.TagNames)
//	}
//
// Tag names are not ids. The importer resolves them against the notebook
// before the excerpts are stored. Blocks without any content line are
// reported in ParseResult.Errors and skipped.
package parser
