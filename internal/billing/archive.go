package billing

import (
	"context"
	"time"
)

// JSONPutter stores a JSON document under a key. pkg/storage.S3 satisfies it.
type JSONPutter interface {
	PutJSON(ctx context.Context, key string, v interface{}) error
}

// ArchiveSink archives sweep reports as JSON objects.
type ArchiveSink struct {
	put JSONPutter
}

// NewArchiveSink returns a ReportSink writing through put.
func NewArchiveSink(put JSONPutter) *ArchiveSink {
	return &ArchiveSink{put: put}
}

// SaveSweepReport implements ReportSink.
func (a *ArchiveSink) SaveSweepReport(ctx context.Context, r *SweepReport) error {
	return a.put.PutJSON(ctx, SweepReportKey(r.StartedAt), r)
}

// SweepReportKey is the object key for a sweep started at t: sweeps/<UTC timestamp>.json.
func SweepReportKey(t time.Time) string {
	return "sweeps/" + t.UTC().Format("20060102T150405Z") + ".json"
}
