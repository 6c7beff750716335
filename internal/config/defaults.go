package config

// Default returns a configuration populated with sensible defaults. Callers
// normally obtain configuration through Load, which layers file values on top.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:       "~/.local/share/murmur",
			MediaDir:      "~/.local/share/murmur/media",
			TranscriptDir: "~/.local/share/murmur/transcripts",
			LogDir:        "~/.local/share/murmur/logs",
			APIBind:       "127.0.0.1:7816",
		},
		Tools: Tools{
			YtDlp:   "yt-dlp",
			Whisper: "whisper",
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
		},
		Acquisition: Acquisition{
			MaxHeight:      1080,
			MaxFPS:         60,
			TimeoutSeconds: 3600,
		},
		Transcription: Transcription{
			Model:          "small",
			Language:       "en",
			TimeoutSeconds: 7200,
		},
		Workers: Workers{
			Count:               2,
			PollInterval:        3,
			MaxRetries:          2,
			KillGraceSeconds:    5,
			HeartbeatInterval:   15,
			HeartbeatTimeout:    120,
			MergeTimeoutSeconds: 600,
			IndexTimeoutSeconds: 300,
			TransientMarkers: []string{
				"HTTP Error 429",
				"HTTP Error 5",
				"Connection reset",
				"Temporary failure in name resolution",
				"timed out",
			},
		},
		Notifications: Notifications{
			RequestTimeout: 10,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

func (c *Config) normalize() error {
	pathFields := []*string{
		&c.Paths.DataDir,
		&c.Paths.MediaDir,
		&c.Paths.TranscriptDir,
		&c.Paths.LogDir,
		&c.Transcription.ModelDir,
	}
	for _, field := range pathFields {
		if *field == "" {
			continue
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}
