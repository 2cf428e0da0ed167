package state

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// FileStore implements Store with a single YAML file. Designed for
// schedulers and headless environments where a SQLite file per deployment
// is impractical. History is capped; watermarks are complete.
type FileStore struct {
	path string
	mu   sync.RWMutex
	data *fileData
}

const fileHistoryLimit = 20

type fileData struct {
	Watermarks map[string]fileWatermark `yaml:"watermarks"`
	Runs       []fileRun                `yaml:"runs,omitempty"`
}

type fileWatermark struct {
	Column    string    `yaml:"column"`
	Kind      string    `yaml:"kind"`
	Value     string    `yaml:"value"`
	Rows      int64     `yaml:"rows,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

type fileRun struct {
	ID          string            `yaml:"id"`
	StartedAt   time.Time         `yaml:"started_at"`
	CompletedAt *time.Time        `yaml:"completed_at,omitempty"`
	Status      string            `yaml:"status"`
	Source      string            `yaml:"source"`
	Destination string            `yaml:"destination"`
	Tables      []fileTableResult `yaml:"tables,omitempty"`
}

type fileTableResult struct {
	Table      string        `yaml:"table"`
	Strategy   string        `yaml:"strategy"`
	Status     string        `yaml:"status"`
	Rows       int64         `yaml:"rows"`
	SourceRows int64         `yaml:"source_rows,omitempty"`
	DestRows   int64         `yaml:"dest_rows,omitempty"`
	Error      string        `yaml:"error,omitempty"`
	Duration   time.Duration `yaml:"duration,omitempty"`
}

// OpenFile loads (or initializes) the YAML state file at path.
func OpenFile(path string) (*FileStore, error) {
	fs := &FileStore{
		path: path,
		data: &fileData{Watermarks: make(map[string]fileWatermark)},
	}
	if _, err := os.Stat(path); err == nil {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading state file: %w", err)
		}
		if err := yaml.Unmarshal(raw, fs.data); err != nil {
			return nil, fmt.Errorf("parsing state file: %w", err)
		}
		if fs.data.Watermarks == nil {
			fs.data.Watermarks = make(map[string]fileWatermark)
		}
	}
	return fs, nil
}

// save writes atomically: temp file in the same directory, then rename.
func (fs *FileStore) save() error {
	raw, err := yaml.Marshal(fs.data)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return os.Rename(tmp, fs.path)
}

func wmKey(schema, table string) string {
	return schema + "." + table
}

func (fs *FileStore) GetWatermark(schema, table string) (*Watermark, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	w, ok := fs.data.Watermarks[wmKey(schema, table)]
	if !ok {
		return nil, nil
	}
	return &Watermark{Column: w.Column, Kind: w.Kind, Value: w.Value, Rows: w.Rows, UpdatedAt: w.UpdatedAt}, nil
}

func (fs *FileStore) SetWatermark(schema, table string, wm Watermark) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	updated := wm.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	fs.data.Watermarks[wmKey(schema, table)] = fileWatermark{
		Column:    wm.Column,
		Kind:      wm.Kind,
		Value:     wm.Value,
		Rows:      wm.Rows,
		UpdatedAt: updated,
	}
	return fs.save()
}

func (fs *FileStore) CreateRun(r Run) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	started := r.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}
	fs.data.Runs = append([]fileRun{{
		ID:          r.ID,
		StartedAt:   started,
		Status:      "running",
		Source:      r.Source,
		Destination: r.Destination,
	}}, fs.data.Runs...)
	if len(fs.data.Runs) > fileHistoryLimit {
		fs.data.Runs = fs.data.Runs[:fileHistoryLimit]
	}
	return fs.save()
}

func (fs *FileStore) CompleteRun(id, status string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i := range fs.data.Runs {
		if fs.data.Runs[i].ID == id {
			now := time.Now().UTC()
			fs.data.Runs[i].Status = status
			fs.data.Runs[i].CompletedAt = &now
			break
		}
	}
	return fs.save()
}

func (fs *FileStore) RecordTableResult(tr TableResult) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i := range fs.data.Runs {
		if fs.data.Runs[i].ID != tr.RunID {
			continue
		}
		entry := fileTableResult{
			Table:      tr.Table,
			Strategy:   tr.Strategy,
			Status:     tr.Status,
			Rows:       tr.Rows,
			SourceRows: tr.SourceRows,
			DestRows:   tr.DestRows,
			Error:      tr.Error,
			Duration:   tr.Duration,
		}
		replaced := false
		for j := range fs.data.Runs[i].Tables {
			if fs.data.Runs[i].Tables[j].Table == tr.Table {
				fs.data.Runs[i].Tables[j] = entry
				replaced = true
				break
			}
		}
		if !replaced {
			fs.data.Runs[i].Tables = append(fs.data.Runs[i].Tables, entry)
		}
		break
	}
	return fs.save()
}

func (fs *FileStore) ListRuns(limit int) ([]Run, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if limit < 1 || limit > len(fs.data.Runs) {
		limit = len(fs.data.Runs)
	}
	runs := make([]Run, 0, limit)
	for _, r := range fs.data.Runs[:limit] {
		runs = append(runs, Run{
			ID:          r.ID,
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
			Status:      r.Status,
			Source:      r.Source,
			Destination: r.Destination,
		})
	}
	return runs, nil
}

func (fs *FileStore) ListTableResults(runID string) ([]TableResult, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	for _, r := range fs.data.Runs {
		if r.ID != runID {
			continue
		}
		results := make([]TableResult, 0, len(r.Tables))
		for _, t := range r.Tables {
			results = append(results, TableResult{
				RunID:      runID,
				Table:      t.Table,
				Strategy:   t.Strategy,
				Status:     t.Status,
				Rows:       t.Rows,
				SourceRows: t.SourceRows,
				DestRows:   t.DestRows,
				Error:      t.Error,
				Duration:   t.Duration,
			})
		}
		return results, nil
	}
	return nil, nil
}

func (fs *FileStore) Close() error {
	return nil
}

var _ Store = (*FileStore)(nil)
