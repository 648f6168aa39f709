// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunRecord is the persisted history entry of one driver run.
type RunRecord struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMS int64     `json:"durationMs"`
	ExitCode   int       `json:"exitCode"`
	TimedOut   bool      `json:"timedOut"`
	Error      string    `json:"error,omitempty"`
	// Source is the route that triggered the run.
	Source string `json:"source"`
	Output string `json:"output,omitempty"`
}

// RunSummary is a RunRecord without its output.
type RunSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMS int64     `json:"durationMs"`
	ExitCode   int       `json:"exitCode"`
	TimedOut   bool      `json:"timedOut"`
	Error      string    `json:"error,omitempty"`
	Source     string    `json:"source"`
}

// NewRunRecord builds the record of a finished run.
func NewRunRecord(source string, res RunResult) *RunRecord {
	rec := &RunRecord{
		ID:         uuid.NewString(),
		StartedAt:  res.Started.UTC(),
		DurationMS: res.Duration.Milliseconds(),
		ExitCode:   res.ExitCode,
		TimedOut:   res.TimedOut,
		Source:     source,
		Output:     res.Output,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	return rec
}

func (r *RunRecord) summary() RunSummary {
	return RunSummary{
		ID:         r.ID,
		StartedAt:  r.StartedAt,
		DurationMS: r.DurationMS,
		ExitCode:   r.ExitCode,
		TimedOut:   r.TimedOut,
		Error:      r.Error,
		Source:     r.Source,
	}
}

// RunStore manages run history persistence to disk.
type RunStore struct {
	DataDir string
	storage *storage.Storage
	logger  *zap.Logger
	mu      sync.Map // Stores *sync.RWMutex for each run id
}

// NewRunStore creates a new RunStore. A nil logger discards log output.
func NewRunStore(dataDir string, s *storage.Storage, logger *zap.Logger) *RunStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunStore{
		DataDir: dataDir,
		storage: s,
		logger:  logger,
	}
}

func (rs *RunStore) lock(id string) *sync.RWMutex {
	m, _ := rs.mu.LoadOrStore(id, &sync.RWMutex{})
	return m.(*sync.RWMutex)
}

func runFilename(id string) string {
	return filepath.Join("runs", fmt.Sprintf("%s.json", url.PathEscape(id)))
}

// SaveRun saves the run record atomically.
func (rs *RunStore) SaveRun(rec *RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("run record has no id")
	}
	mutex := rs.lock(rec.ID)
	mutex.Lock()
	defer mutex.Unlock()

	if err := os.MkdirAll(filepath.Join(rs.DataDir, "runs"), 0755); err != nil {
		return fmt.Errorf("creating runs dir: %w", err)
	}
	if err := rs.storage.SaveDataFile(runFilename(rec.ID), rec); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// LoadRun loads a run record by id. It returns os.ErrNotExist when there
// is no such run.
func (rs *RunStore) LoadRun(id string) (*RunRecord, error) {
	mutex := rs.lock(id)
	mutex.RLock()
	defer mutex.RUnlock()

	var rec RunRecord
	if err := rs.storage.ReadDataFile(runFilename(id), &rec); err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	return &rec, nil
}

// ListRuns returns one page of run summaries, newest first, and the total
// number of runs.
func (rs *RunStore) ListRuns(limit, offset int) ([]RunSummary, int, error) {
	runsDir := filepath.Join(rs.DataDir, "runs")
	files, err := os.ReadDir(runsDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, 0, fmt.Errorf("could not read runs directory: %w", err)
	}

	all := make([]RunSummary, 0, len(files))
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		rec, err := rs.LoadRun(id)
		if err != nil {
			rs.logger.Warn("skipping unreadable run", zap.String("file", name), zap.Error(err))
			continue
		}
		all = append(all, rec.summary())
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].StartedAt.Equal(all[j].StartedAt) {
			return all[i].StartedAt.After(all[j].StartedAt)
		}
		return all[i].ID < all[j].ID
	})

	total := len(all)
	if offset >= total {
		return []RunSummary{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}
