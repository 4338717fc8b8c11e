// Package store provides durable history.Store implementations: a SQLite
// database and size-rotated JSON Lines files. Importing the package
// registers them as the "sqlite" and "jsonl" store types.
package store
