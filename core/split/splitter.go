package split

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/pyropy/tsload/core/model"
)

const (
	// DefaultPartitionInterval is the width of one time-partition slot in
	// milliseconds (one week).
	DefaultPartitionInterval = int64(604_800_000)

	DefaultWorkers = 4

	maxLineBytes = 16 * 1024 * 1024
)

var (
	ErrUnknownRecordKind = errors.New("unknown record kind")
)

// wireRecord is one line of a segment file.
type wireRecord struct {
	Kind      int    `json:"kind"`
	Device    string `json:"device"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Payload   []byte `json:"payload,omitempty"`
	StartTime int64  `json:"startTime,omitempty"`
	EndTime   int64  `json:"endTime,omitempty"`
}

// MergedSplitter streams a set of segment files as records. Files are read
// concurrently on a bounded worker pool; records keep their source-file
// order, interleaving across files is arbitrary. The sink is invoked once
// per record and may block, which throttles the reading worker.
type MergedSplitter struct {
	files             []string
	partitionInterval int64
	workers           int
}

func NewMergedSplitter(files []string, partitionInterval int64, workers int) *MergedSplitter {
	if partitionInterval <= 0 {
		partitionInterval = DefaultPartitionInterval
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &MergedSplitter{
		files:             files,
		partitionInterval: partitionInterval,
		workers:           workers,
	}
}

// Split completes only after every input finished; the first failure
// cancels the remaining readers.
func (s *MergedSplitter) Split(ctx context.Context, sink func(model.Record) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, s.workers)
	errCh := make(chan error, len(s.files))

	var wg sync.WaitGroup
	for _, file := range s.files {
		wg.Add(1)
		go func(file string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := s.splitFile(ctx, file, sink); err != nil {
				errCh <- fmt.Errorf("split %s: %w", file, err)
				cancel()
			}
		}(file)
	}

	wg.Wait()
	close(errCh)

	var cancelErr error
	for err := range errCh {
		if errors.Is(err, context.Canceled) {
			if cancelErr == nil {
				cancelErr = err
			}
			continue
		}

		return err
	}

	return cancelErr
}

func (s *MergedSplitter) splitFile(ctx context.Context, file string, sink func(model.Record) error) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}

	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++

		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		record, err := s.parseLine(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}

		if err := sink(record); err != nil {
			return err
		}
	}

	return scanner.Err()
}

func (s *MergedSplitter) parseLine(line []byte) (model.Record, error) {
	var wire wireRecord
	if err := json.Unmarshal(line, &wire); err != nil {
		return model.Record{}, err
	}

	// The newline is part of the record's footprint in the file.
	size := int64(len(line)) + 1

	switch model.RecordKind(wire.Kind) {
	case model.KindData:
		return model.Record{
			Kind:    model.KindData,
			Device:  wire.Device,
			Slot:    wire.Timestamp / s.partitionInterval,
			Payload: wire.Payload,
			Size:    size,
		}, nil
	case model.KindDeletion:
		return model.Record{
			Kind:      model.KindDeletion,
			Device:    wire.Device,
			StartSlot: wire.StartTime / s.partitionInterval,
			EndSlot:   wire.EndTime / s.partitionInterval,
			Size:      size,
		}, nil
	default:
		return model.Record{}, fmt.Errorf("%w: %d", ErrUnknownRecordKind, wire.Kind)
	}
}
