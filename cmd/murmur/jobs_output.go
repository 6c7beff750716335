package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"murmur/internal/api"
)

const displayTimeFormat = "2006-01-02 15:04:05"

func buildStatsRows(stats api.JobStats) [][]string {
	if stats.Total == 0 {
		return nil
	}
	type bucket struct {
		label string
		count int
	}
	buckets := []bucket{
		{"queued", stats.Queued},
		{"processing", stats.Processing},
		{"paused", stats.Paused},
		{"done", stats.Done},
		{"failed", stats.Failed},
	}
	rows := make([][]string, 0, len(buckets)+1)
	for _, b := range buckets {
		if b.count == 0 {
			continue
		}
		rows = append(rows, []string{b.label, strconv.Itoa(b.count)})
	}
	rows = append(rows, []string{"total", strconv.Itoa(stats.Total)})
	return rows
}

func buildJobRows(items []api.JobItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			truncate(item.URL, 60),
			item.Status,
			formatProgress(item),
			formatTimestamp(item.CreatedAt),
		})
	}
	return rows
}

func buildSearchRows(hits []api.SearchHit) [][]string {
	rows := make([][]string, 0, len(hits))
	for _, hit := range hits {
		rows = append(rows, []string{
			hit.MediaID,
			truncate(hit.Title, 40),
			formatTimeRange(hit.StartMS, hit.EndMS),
			truncate(hit.Text, 70),
		})
	}
	return rows
}

func busySlotRows(slots []api.WorkerSlot) [][]string {
	rows := make([][]string, 0, len(slots))
	for _, slot := range slots {
		if slot.JobID == 0 {
			continue
		}
		state := "running"
		if slot.Paused {
			state = "paused"
		}
		rows = append(rows, []string{
			strconv.Itoa(slot.Slot),
			strconv.FormatInt(slot.JobID, 10),
			slot.Stage,
			state,
			formatTimestamp(slot.StartedAt),
		})
	}
	return rows
}

func formatProgress(item api.JobItem) string {
	if item.Progress.Percent <= 0 && item.Progress.Message == "" {
		return ""
	}
	if item.Progress.Message != "" {
		return fmt.Sprintf("%.0f%% %s", item.Progress.Percent, item.Progress.Message)
	}
	return fmt.Sprintf("%.0f%%", item.Progress.Percent)
}

func formatTimestamp(value string) string {
	if value == "" {
		return ""
	}
	parsed, err := time.Parse("2006-01-02T15:04:05.000Z07:00", value)
	if err != nil {
		return value
	}
	return parsed.Local().Format(displayTimeFormat)
}

// formatTimeRange renders millisecond offsets as mm:ss or h:mm:ss spans.
func formatTimeRange(startMS, endMS int64) string {
	return formatOffset(startMS) + "-" + formatOffset(endMS)
}

func formatOffset(ms int64) string {
	total := ms / 1000
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
