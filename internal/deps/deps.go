// Package deps verifies the external tools Murmur shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"murmur/internal/config"
)

// Requirement names an external binary a pipeline stage invokes.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of one requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Required returns the tool requirements for the configured pipeline.
func Required(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "yt-dlp", Command: cfg.Tools.YtDlp, Description: "media acquisition"},
		{Name: "whisper", Command: cfg.Tools.Whisper, Description: "speech transcription"},
		{Name: "ffmpeg", Command: cfg.Tools.FFmpeg, Description: "stream merging"},
		{Name: "ffprobe", Command: cfg.Tools.FFprobe, Description: "stream inspection"},
	}
}

// CheckBinaries resolves each requirement on PATH and reports what it found.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		command := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     command,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case command == "":
			status.Detail = "command not configured"
		default:
			if _, err := exec.LookPath(command); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", command)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// Missing filters statuses down to required tools that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}

// Verify checks the configured pipeline tools and returns an error naming
// any required binary that cannot be resolved.
func Verify(cfg *config.Config) error {
	missing := Missing(CheckBinaries(Required(cfg)))
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for _, status := range missing {
		names = append(names, fmt.Sprintf("%s (%s)", status.Name, status.Detail))
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(names, ", "))
}
