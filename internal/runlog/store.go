// Package runlog persists per-run diagnostics under .rga/runs.
package runlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// DirName is the per-project state directory.
const DirName = ".rga"

// ErrNotFound is returned by Get for unknown run ids.
var ErrNotFound = errors.New("run not found")

// Store reads and writes run records for one project.
type Store struct {
	fs      afero.Fs
	runsDir string
	now     func() time.Time

	mu sync.Mutex
}

// NewStore creates the runs directory under projectRoot if needed.
func NewStore(fs afero.Fs, projectRoot string) (*Store, error) {
	s := &Store{
		fs:      fs,
		runsDir: filepath.Join(projectRoot, DirName, "runs"),
		now:     time.Now,
	}
	if err := fs.MkdirAll(s.runsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", s.runsDir, err)
	}
	return s, nil
}

// Dir returns the directory records are written to.
func (s *Store) Dir() string {
	return s.runsDir
}

// Save writes rec, assigning an id and creation time when missing.
func (s *Store) Save(rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", rec.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.path(rec.ID)
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run %s: %w", path, err)
	}
	return nil
}

// Get loads the record with id.
func (s *Store) Get(id string) (*Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(s.path(id))
}

// List returns every record, newest first. Unreadable files are skipped.
func (s *Store) List() ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := afero.ReadDir(s.fs, s.runsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var out []*Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rec, err := s.read(filepath.Join(s.runsDir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Prune deletes all but the newest keep records and returns how many
// were removed.
func (s *Store) Prune(keep int) (int, error) {
	recs, err := s.List()
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(recs) <= keep {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, r := range recs[keep:] {
		if err := s.fs.Remove(s.path(r.ID)); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove run %s: %w", r.ID, err)
		}
		removed++
	}
	return removed, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.runsDir, id+".json")
}

func (s *Store) read(path string) (*Record, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read run %s: %w", path, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", path, err)
	}
	return &rec, nil
}
