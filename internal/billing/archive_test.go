package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPutter struct {
	keys   []string
	values []interface{}
}

func (p *recordingPutter) PutJSON(_ context.Context, key string, v interface{}) error {
	p.keys = append(p.keys, key)
	p.values = append(p.values, v)
	return nil
}

func TestArchiveSink(t *testing.T) {
	put := &recordingPutter{}
	started := time.Date(2024, 5, 1, 0, 0, 3, 0, time.FixedZone("WAT", 3600))
	report := &SweepReport{StartedAt: started, Expired: 2}

	require.NoError(t, NewArchiveSink(put).SaveSweepReport(context.Background(), report))
	assert.Equal(t, []string{"sweeps/20240430T230003Z.json"}, put.keys)
	assert.Same(t, report, put.values[0])
}
