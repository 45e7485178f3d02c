// Package importer moves excerpts in and out of a notebook.
//
// Text import parses any number of plain-text files concurrently (see
// package parser), creates the tags they name and stores every excerpt
// through a single writer, committing once:
//
//	imp := importer.New(store, logger)
//	stats, err := imp.ImportTextFiles(ctx, []string{"a.txt", "b.txt"}, &importer.Config{Workers: 4})
//	fmt.Printf("%d excerpts from %d files\n", stats.ExcerptsImported, stats.FilesParsed)
//
// JSON import and export use the snapshot layout of types.Snapshot:
//
//	{ "tags": [...], "excerpts": [...], "export_date": "..." }
//
// Export replaces the target file atomically. An Importer runs one import at
// a time; a concurrent call fails fast with ErrImportInProgress.
package importer
