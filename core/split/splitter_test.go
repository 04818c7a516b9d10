package split

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pyropy/tsload/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSegmentFile(t *testing.T, dir, name string, records []wireRecord) (string, []int64) {
	t.Helper()

	var content []byte
	sizes := make([]int64, 0, len(records))
	for _, record := range records {
		line, err := json.Marshal(record)
		require.NoError(t, err)

		sizes = append(sizes, int64(len(line))+1)
		content = append(content, line...)
		content = append(content, '\n')
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0640))

	return path, sizes
}

type recordSink struct {
	mu      sync.Mutex
	records []model.Record
	err     error
}

func (s *recordSink) sink(record model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	s.records = append(s.records, record)

	return nil
}

func TestSplitSingleFile(t *testing.T) {
	interval := int64(1000)
	path, sizes := writeSegmentFile(t, t.TempDir(), "segment-0", []wireRecord{
		{Kind: int(model.KindData), Device: "d1", Timestamp: 2500, Payload: []byte{1, 2, 3}},
		{Kind: int(model.KindDeletion), Device: "d1", StartTime: 0, EndTime: 5000},
	})

	sink := &recordSink{}
	splitter := NewMergedSplitter([]string{path}, interval, 1)
	require.NoError(t, splitter.Split(context.Background(), sink.sink))

	require.Len(t, sink.records, 2)

	data := sink.records[0]
	assert.Equal(t, model.KindData, data.Kind)
	assert.Equal(t, "d1", data.Device)
	assert.Equal(t, int64(2), data.Slot)
	assert.Equal(t, []byte{1, 2, 3}, data.Payload)
	assert.Equal(t, sizes[0], data.Size)

	deletion := sink.records[1]
	assert.True(t, deletion.IsDeletion())
	assert.Equal(t, int64(0), deletion.StartSlot)
	assert.Equal(t, int64(5), deletion.EndSlot)
	assert.Equal(t, sizes[1], deletion.Size)
}

func TestSplitManyFilesDeliversEveryRecord(t *testing.T) {
	dir := t.TempDir()

	files := make([]string, 0, 6)
	total := 0
	for i := 0; i < 6; i++ {
		records := make([]wireRecord, 0, 10)
		for j := 0; j < 10; j++ {
			records = append(records, wireRecord{
				Kind:      int(model.KindData),
				Device:    "d1",
				Timestamp: int64(j * 1000),
				Payload:   []byte{byte(i), byte(j)},
			})
		}

		path, _ := writeSegmentFile(t, dir, fmt.Sprintf("segment-%d", i), records)
		files = append(files, path)
		total += len(records)
	}

	sink := &recordSink{}
	splitter := NewMergedSplitter(files, 1000, 3)
	require.NoError(t, splitter.Split(context.Background(), sink.sink))
	assert.Len(t, sink.records, total)
}

func TestSplitReportsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment-0")
	require.NoError(t, os.WriteFile(path, []byte("{\"kind\":0}\nnot json\n"), 0640))

	splitter := NewMergedSplitter([]string{path}, 1000, 1)
	err := splitter.Split(context.Background(), (&recordSink{}).sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestSplitRejectsUnknownRecordKind(t *testing.T) {
	path, _ := writeSegmentFile(t, t.TempDir(), "segment-0", []wireRecord{
		{Kind: 9, Device: "d1"},
	})

	splitter := NewMergedSplitter([]string{path}, 1000, 1)
	err := splitter.Split(context.Background(), (&recordSink{}).sink)
	require.ErrorIs(t, err, ErrUnknownRecordKind)
}

func TestSplitStopsOnSinkError(t *testing.T) {
	records := make([]wireRecord, 100)
	for i := range records {
		records[i] = wireRecord{Kind: int(model.KindData), Device: "d1", Timestamp: int64(i)}
	}

	path, _ := writeSegmentFile(t, t.TempDir(), "segment-0", records)

	sinkErr := errors.New("dispatch failed")
	splitter := NewMergedSplitter([]string{path}, 1000, 1)
	err := splitter.Split(context.Background(), (&recordSink{err: sinkErr}).sink)
	require.ErrorIs(t, err, sinkErr)
}

func TestSplitMissingFileFails(t *testing.T) {
	splitter := NewMergedSplitter([]string{filepath.Join(t.TempDir(), "absent")}, 1000, 1)
	err := splitter.Split(context.Background(), (&recordSink{}).sink)
	require.Error(t, err)
}
