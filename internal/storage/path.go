package storage

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// BuildSnapshotArchiveKey derives a timestamped sibling of latestKey, so
// "snapshots/accommodations/latest.parquet" archives to
// "snapshots/accommodations/archive/date=2026-02-19/snapshot-20260219T091500Z.parquet".
func BuildSnapshotArchiveKey(latestKey string, at time.Time) (string, error) {
	latestKey = strings.TrimSpace(strings.TrimPrefix(latestKey, "/"))
	if latestKey == "" {
		return "", fmt.Errorf("snapshot key is required")
	}
	ext := path.Ext(latestKey)
	if ext == "" {
		ext = ".parquet"
	}
	ts := at.UTC()
	return path.Join(
		path.Dir(latestKey),
		"archive",
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		"snapshot-"+ts.Format("20060102T150405Z")+ext,
	), nil
}
