package whisper

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Segment is one timestamped span of transcript text.
type Segment struct {
	StartMS int64
	EndMS   int64
	Text    string
}

type transcriptFile struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// LoadSegments parses a whisper JSON transcript into millisecond-resolution
// segments. Text is trimmed and NFC-normalized so search matches do not
// depend on the decomposition whisper happened to emit; empty segments are
// dropped.
func LoadSegments(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var file transcriptFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse transcript %s: %w", path, err)
	}

	segments := make([]Segment, 0, len(file.Segments))
	for _, raw := range file.Segments {
		text := norm.NFC.String(strings.TrimSpace(raw.Text))
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			StartMS: secondsToMS(raw.Start),
			EndMS:   secondsToMS(raw.End),
			Text:    text,
		})
	}
	return segments, nil
}

func secondsToMS(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}
