// Package ffmpeg wraps ffmpeg and ffprobe for stream inspection and the
// copy-remux merge stage.
package ffmpeg
