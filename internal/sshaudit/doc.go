// Package sshaudit records dispatcher operations (connect, execute, file
// transfer, listing, disconnect) in the SQLite audit table and prunes old
// records on a cron schedule.
//
// Entries never contain credentials. Command text is truncated before it is
// stored, and every entry carries a random operation ID that is also written
// to the log line, so a database row can be matched to the process log.
//
// # Log Prefixes
//
// All operations log at the [audit] prefix.
package sshaudit
