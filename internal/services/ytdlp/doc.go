// Package ytdlp wraps the yt-dlp CLI for metadata lookups and stream
// downloads during the acquire stage.
package ytdlp
