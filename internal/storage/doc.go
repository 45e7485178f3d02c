// Package storage persists notebooks: one SQLite file per notebook holding
// tags, excerpts and the excerpt↔tag relation.
//
// # Layers
//
//   - Coerce converts native values to bindable scalars.
//   - Table is a generic accessor over a TableDef: counts, batched inserts,
//     primary-key protected updates, manual upserts, deletes and queries.
//     Statements are built with squirrel; values are always bound and
//     identifiers are validated and quoted.
//   - IDTable adds lookups and single-statement upserts keyed by a text id.
//   - ExcerptTags is the many-to-many relation, including tag merging.
//   - TagRepository and ExcerptRepository speak pkg/types records.
//   - Store owns the connection and the transaction all of the above join.
//
// # Schema
//
// Tables:
//   - tags: cid, name, color, orders
//   - excerpts: cid, content, source, title, author, note, created_at
//   - excerpt_tags: (excerpt_cid, tag_cid), cascading from both sides
//
// The default tag ("default") is created when a notebook is first opened and
// can never be deleted. Deleting any other tag moves its excerpts to it.
//
// # Basic Usage
//
//	store, err := storage.Open(ctx, "reading.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	id, err := store.Excerpts().Create(ctx, types.Excerpt{
//	    Content: "...",
//	    TagIDs:  []string{tagID},
//	})
//	if err != nil {
//	    _ = store.Rollback()
//	    return err
//	}
//	return store.Commit()
//
// # Transactions
//
// Writes join a transaction begun lazily on first use. Nothing is durable
// until Commit; Close commits. Multi-step operations such as tag deletion are
// not wrapped in their own transaction, so the caller decides between Commit
// and Rollback when one fails.
//
// # Build Tags
//
// The default build uses modernc.org/sqlite (pure Go). Building with the
// sqlite_cgo tag switches to github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags sqlite_cgo ./...
package storage
