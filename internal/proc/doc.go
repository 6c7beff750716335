// Package proc runs external tools in their own process groups, streaming
// their output and supporting whole-group suspend, resume, and kill.
package proc
