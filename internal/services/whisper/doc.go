// Package whisper wraps the whisper CLI and parses its JSON transcripts.
package whisper
