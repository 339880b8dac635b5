// Package logtail reads the end of ubike's own log file for the in-app log
// view.
//
// Tail keeps a ring of the last n lines while scanning the file once, so
// memory stays proportional to n rather than the file size. Each line is
// decoded as a zerolog JSON event into an Entry; lines that are not JSON are
// kept verbatim with no level.
//
// A missing log file is not an error: Tail returns no entries.
package logtail
