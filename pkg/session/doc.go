// Package session maps caller-supplied session ids to private workspace
// directories and writes generated files into them.
//
// Invariants:
//   - A session id resolves to exactly one directory, <root>/<id>, and
//     resolving it again never touches existing content.
//   - Ids that are empty, start with '.', or contain path separators,
//     ".." or NUL bytes are rejected with ErrInvalidSession.
//   - File paths are interpreted relative to the session directory and may
//     not escape it.
//   - Writes replace the whole file; nothing here serializes concurrent
//     writes to the same session.
//
// Usage:
//
//	store, _ := session.NewStore("/srv/vibely/user-projects")
//	dir, _ := store.Resolve(ctx, "landing-page")
//	_ = store.WriteFile(ctx, "landing-page", "public/index.html", []byte("<h1>hi</h1>"))
//	_ = dir
package session
