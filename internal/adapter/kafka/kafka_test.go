package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/rpp-data-etl-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	manifest := domain.BundleManifest{
		RunID:       "run-1",
		GeneratedAt: now,
		ChunkSize:   500,
		Files: []domain.BundleFile{
			{Name: "00_schema.sql", Bytes: 10, SHA256: "aaa"},
			{Name: "msas_00000.sql", Table: "msas", Rows: 2, Bytes: 20, SHA256: "bbb"},
		},
		TableRows: map[string]int{"msas": 2},
	}

	msg, err := serializeToMessage(manifest, "bundles/run-1/manifest.json")
	require.NoError(t, err)

	assert.Equal(t, []byte("run-1"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(EventBundlePublished), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)

	var event BundleEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, "bundles/run-1/manifest.json", event.Location)
	assert.True(t, now.Equal(event.GeneratedAt))
	assert.Len(t, event.Files, 2)
	assert.Equal(t, 2, event.TableRows["msas"])
}
