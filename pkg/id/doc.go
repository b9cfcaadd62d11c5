// Package id provides time-ordered, process-unique identifiers for every
// aggregate, command, and event in the bootstrap core.
package id
