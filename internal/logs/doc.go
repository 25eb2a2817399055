// Package logs reads the daemon log file incrementally so the CLI can show
// and follow recent activity without holding the file open across requests.
package logs
