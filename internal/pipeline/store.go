package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/lucasnoah/vitestgpt/internal/llm"
)

// Store keeps run artifacts on disk, one directory per run id.
type Store struct {
	baseDir string // defaults to ~/.vitestgpt/runs
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// DefaultStore returns a Store at ~/.vitestgpt/runs, creating the directory if needed.
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".vitestgpt", "runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &Store{baseDir: dir}, nil
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) runDir(id string) string {
	return filepath.Join(s.baseDir, id)
}

// Save writes result.json and conversation.json for the context's run.
func (s *Store) Save(c *Context) error {
	dir := s.runDir(c.ID)
	if err := WriteJSON(filepath.Join(dir, "result.json"), c.Result()); err != nil {
		return fmt.Errorf("write result.json: %w", err)
	}
	if err := WriteJSON(filepath.Join(dir, "conversation.json"), c.History); err != nil {
		return fmt.Errorf("write conversation.json: %w", err)
	}
	return nil
}

// Get reads the result for a run.
func (s *Store) Get(id string) (*Result, error) {
	var r Result
	if err := ReadJSON(filepath.Join(s.runDir(id), "result.json"), &r); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s not found", id)
		}
		return nil, err
	}
	return &r, nil
}

// Conversation reads the recorded history for a run.
func (s *Store) Conversation(id string) ([]llm.Message, error) {
	var msgs []llm.Message
	if err := ReadJSON(filepath.Join(s.runDir(id), "conversation.json"), &msgs); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s not found", id)
		}
		return nil, err
	}
	return msgs, nil
}

// List returns all readable runs, newest first.
func (s *Store) List() ([]Result, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", s.baseDir, err)
	}

	var runs []Result
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		r, err := s.Get(entry.Name())
		if err != nil {
			continue // skip broken entries
		}
		runs = append(runs, *r)
	}

	// v7 ids sort by creation time.
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].ID > runs[j].ID
	})
	return runs, nil
}

// Delete removes all artifacts for a run.
func (s *Store) Delete(id string) error {
	dir := s.runDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("run %s not found", id)
	}
	return os.RemoveAll(dir)
}
