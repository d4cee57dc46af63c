package incident

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"brain-orchestrator/internal/domain/model"
	"brain-orchestrator/internal/domain/ports/repository"
)

var _ repository.IncidentStore = (*FileStore)(nil)

// FileStore writes one markdown file per escalation under a well-known
// directory. The directory is created lazily on first save so a fresh
// deployment with no incidents has no empty directory lying around.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Save(_ context.Context, report *model.IncidentReport) error {
	if report == nil || report.ID == "" {
		return fmt.Errorf("incident store: empty report")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("incident store: create dir: %w", err)
	}
	path := filepath.Join(s.dir, report.ID+".md")
	content := fmt.Sprintf("# %s\n\n%s\n", report.Title, report.Body)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("incident store: write %s: %w", report.ID, err)
	}
	return nil
}

// List returns the ids of all persisted incidents, oldest first. ULID ids
// sort lexicographically by creation time.
func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("incident store: read dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "RESCUE-") || !strings.HasSuffix(name, ".md") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".md"))
	}
	sort.Strings(ids)
	return ids, nil
}
