// Package snapshot provides consistent read-only views of the book
// and their durable form. Readers mark read sections through the
// memory epoch model so retired orders are not recycled underneath a
// walk in progress; the writer serializes every resting order to a
// gob file the loader can replay into a fresh book on boot.
package snapshot
