// Package cli implements the pastekeeper command line: one-shot commands
// (put, get, raw, delete, uid, stats) and an interactive shell that keeps a
// single store open across commands, which is the only way to use an
// in-memory database for more than one operation.
package cli
