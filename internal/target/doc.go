// Package target manages the durable database of reference images the
// operator wants to detect reuse of. Records are kept in memory for fast
// matching and written back through a Persister on every mutation.
package target
