package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thox33/sync-tool/internal/schema"
)

func linkedSource(id string) schema.Record {
	return schema.Record{
		"id":         "R-1",
		"syncStatus": schema.NewSyncStatus(schema.LinkEntry{ID: id, URL: "https://dst/items/" + id}),
	}
}

func TestItem_Advance(t *testing.T) {
	tests := []struct {
		name   string
		source schema.Record
		want   Status
	}{
		{"no marker", schema.Record{"id": "R-1"}, StatusNew},
		{"empty marker", schema.Record{"id": "R-1", "syncStatus": schema.ParseSyncStatus("")}, StatusNew},
		{"marker without anchors", schema.Record{"id": "R-1", "syncStatus": schema.ParseSyncStatus("pending")}, StatusNew},
		{"linked marker", linkedSource("D-1"), StatusShouldFetch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := NewItem("R-1", tt.source, "syncStatus")
			assert.Equal(t, StatusPrepare, it.Status)
			it.Advance()
			assert.Equal(t, tt.want, it.Status)
		})
	}
}

func TestItem_AdvanceWithoutMarkerField(t *testing.T) {
	it := NewItem("R-1", linkedSource("D-1"), "")
	it.Advance()
	assert.Equal(t, StatusNew, it.Status)
}

func TestItem_AddDestination(t *testing.T) {
	it := NewItem("R-1", linkedSource("D-1"), "syncStatus")
	it.Advance()
	require.Equal(t, StatusShouldFetch, it.Status)

	it.AddDestination(schema.Record{"id": "D-1"})
	assert.Equal(t, StatusFetched, it.Status)
	assert.Equal(t, "D-1", it.Destination["id"])
}

func TestItem_AdvanceIsIdempotentElsewhere(t *testing.T) {
	for _, s := range []Status{StatusNew, StatusFetched, StatusNeedsUpdate, StatusSynced, StatusFailed} {
		it := NewItem("R-1", linkedSource("D-1"), "syncStatus")
		it.Status = s
		it.Advance()
		assert.Equal(t, s, it.Status, "status %s", s)
	}

	// PREPARE with a destination already attached stays put.
	it := NewItem("R-1", linkedSource("D-1"), "syncStatus")
	it.Destination = schema.Record{}
	it.Advance()
	assert.Equal(t, StatusPrepare, it.Status)
}

func TestItem_SourceSyncID(t *testing.T) {
	it := NewItem("R-1", schema.Record{
		"syncStatus": schema.ParseSyncStatus(`<a href="u1">D-1</a> <a href="u2">D-2</a>`),
	}, "syncStatus")
	id, ok := it.SourceSyncID()
	require.True(t, ok)
	assert.Equal(t, "D-1", id)

	it = NewItem("R-2", schema.Record{}, "syncStatus")
	_, ok = it.SourceSyncID()
	assert.False(t, ok)
}

func TestItem_Fail(t *testing.T) {
	it := NewItem("R-1", schema.Record{}, "syncStatus")
	cause := errors.New("boom")
	it.Fail(cause)

	assert.True(t, it.Terminal())
	assert.Equal(t, StatusFailed, it.Status)
	assert.ErrorIs(t, it.Err, cause)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "should_fetch", StatusShouldFetch.String())
	assert.Equal(t, "unknown", Status(42).String())

	text, err := StatusNeedsUpdate.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "needs_update", string(text))

	var s Status
	require.NoError(t, s.UnmarshalText([]byte("fetched")))
	assert.Equal(t, StatusFetched, s)
	assert.Error(t, s.UnmarshalText([]byte("done")))

	assert.True(t, StatusSynced.Terminal())
	assert.False(t, StatusFetched.Terminal())
}
