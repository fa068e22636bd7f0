// Package tools runs host commands for drivers that wrap system utilities.
//
// Ownership boundary:
// - command execution with context cancellation
//
// - exit code classification
package tools
