// Package history persists conversation state as a single JSON document.
//
// One [Store] holds three collections: the message transcript, bookmarked
// documents, and saved session records. The on-disk layout is
//
//	{"history": [...], "bookmarks": [...], "sessions": [...]}
//
// with two-space indentation, so the file stays hand-editable.
//
// Key operations:
//
//   - Transcript: [Store.Append], [Store.Clear], [Store.History], [Store.Recent]
//   - Bookmarks: [Store.AddBookmark] (deduplicated), [Store.Bookmarks]
//   - Sessions: [Store.AddSession], [Store.Sessions], [NewSession]
//   - Persistence: [Store.Save], [Store.SaveAsync], [Store.Load], [Store.LoadAsync]
//
// # Durability
//
// [Store.Save] writes atomically (temp file + rename) under an exclusive
// file lock via [github.com/gofrs/flock], so concurrent saves never
// interleave partial writes. Loads take no lock: the rename guarantees a
// reader sees either the old document or the new one, never a torn write.
//
// # Failure policy
//
// A missing file loads as empty state. An unreadable or corrupt file logs
// one warning, resets to empty state, and reports success so the session
// can continue. Save failures are returned to the caller.
package history
