package timestamp

import "time"

const (
	// Layout is the standard layout of all timestamps in batch artifacts
	Layout = "2006-01-02T15:04:05.000000Z"

	// LogsLayout is the timestamp layout of log lines
	LogsLayout = "2006-01-02 15:04:05"

	// FileNameLayout is used in batch artifact names
	FileNameLayout = "2006_01_02_15_04_05"
)

func Now() time.Time {
	return time.Now().UTC()
}

func ToISOFormat(t time.Time) string {
	return t.Format(Layout)
}
