// Package store is the per-job scoped artifact area. Every intermediate and
// final file of one job lives under a directory named by the job ID, which
// is the isolation boundary between concurrent jobs: no two jobs ever
// resolve to the same path. The store performs no cleanup; expiring old
// artifacts is left to external housekeeping so callers can still download
// outputs after the job object is gone.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/forPelevin/brollweave/internal/types"
)

type Store struct {
	baseDir string
}

func New(baseDir string) (*Store, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("store: base dir is empty")
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("store: resolve base dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("store: create base dir: %w", err)
	}
	return &Store{baseDir: abs}, nil
}

// NewJobID returns a collision-resistant identifier that scopes all of a
// job's artifacts.
func NewJobID() string {
	return uuid.New().String()
}

func (s *Store) BaseDir() string { return s.baseDir }

// InitJob creates the job's working directory.
func (s *Store) InitJob(jobID string) error {
	if err := os.MkdirAll(s.jobDir(jobID), 0o755); err != nil {
		return fmt.Errorf("store: init job %s: %w", jobID, err)
	}
	return nil
}

// Allocate deterministically derives the path for (jobID, role). Stage
// execution creates the file; the store only names it.
func (s *Store) Allocate(jobID string, role types.Role) string {
	return filepath.Join(s.jobDir(jobID), role.Filename())
}

func (s *Store) Exists(jobID string, role types.Role) bool {
	_, err := os.Stat(s.Allocate(jobID, role))
	return err == nil
}

// DownloadRef returns the external-facing reference for a final artifact,
// resolvable via the /temp file-serving route.
func (s *Store) DownloadRef(jobID string, role types.Role) string {
	return "/temp/" + jobID + "/" + role.Filename()
}

// Resolve maps a (job, filename) pair from a download request back to a
// local path, rejecting anything that would escape the job directory.
func (s *Store) Resolve(jobID, filename string) (string, error) {
	if !validSegment(jobID) || !validSegment(filename) {
		return "", fmt.Errorf("store: invalid artifact reference %q/%q", jobID, filename)
	}
	p := filepath.Join(s.jobDir(jobID), filename)
	if !strings.HasPrefix(p, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("store: reference %q/%q escapes working area", jobID, filename)
	}
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("store: artifact %q/%q: %w", jobID, filename, err)
	}
	return p, nil
}

func (s *Store) jobDir(jobID string) string {
	return filepath.Join(s.baseDir, jobID)
}

func validSegment(seg string) bool {
	if seg == "" || seg == "." || seg == ".." {
		return false
	}
	return !strings.ContainsAny(seg, `/\`)
}
