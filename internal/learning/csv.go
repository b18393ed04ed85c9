package learning

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// CSVStore keeps records in a single CSV file with a header row. It is safe
// for concurrent use within one process.
type CSVStore struct {
	path string
	log  *zap.Logger
	mu   sync.Mutex
}

// NewCSVStore creates a store at path. The file is created on first append.
func NewCSVStore(path string, logger *zap.Logger) *CSVStore {
	return &CSVStore{path: path, log: logger.Named("learning.csv")}
}

// Path returns the backing file.
func (s *CSVStore) Path() string { return s.path }

// ReadAll returns every record. A missing file holds no records.
func (s *CSVStore) ReadAll(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx)
}

// Append writes r with the next free ID and returns that ID.
func (s *CSVStore) Append(ctx context.Context, r Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read(ctx)
	if err != nil {
		return 0, err
	}
	r.ID = NextID(existing)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create learning directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open learning file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat learning file: %w", err)
	}
	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return 0, fmt.Errorf("failed to write learning header: %w", err)
		}
	}
	row := []string{strconv.Itoa(r.ID), r.FailedSubtask, r.FailureReason, r.AgentSelected, r.Reasoning, r.MitigationTask}
	if err := w.Write(row); err != nil {
		return 0, fmt.Errorf("failed to write learning record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush learning record: %w", err)
	}
	s.log.Info("Learning record appended", zap.Int("id", r.ID), zap.String("agent", r.AgentSelected))
	return r.ID, nil
}

func (s *CSVStore) read(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open learning file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var records []Record
	for line := 0; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse learning file: %w", err)
		}
		if line == 0 && len(row) > 0 && row[0] == Header[0] {
			continue
		}
		rec, err := parseRow(row)
		if err != nil {
			s.log.Warn("Skipping malformed learning row", zap.Int("line", line+1), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string) (Record, error) {
	if len(row) < len(Header) {
		return Record{}, fmt.Errorf("expected %d columns, got %d", len(Header), len(row))
	}
	id, err := strconv.Atoi(row[0])
	if err != nil {
		return Record{}, fmt.Errorf("invalid ID %q: %w", row[0], err)
	}
	return Record{
		ID:             id,
		FailedSubtask:  row[1],
		FailureReason:  row[2],
		AgentSelected:  row[3],
		Reasoning:      row[4],
		MitigationTask: row[5],
	}, nil
}
