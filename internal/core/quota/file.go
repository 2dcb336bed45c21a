package quota

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/loggate/loggate/internal/core"
)

const fileRecordVersion = 1

type fileRecord struct {
	Version int             `yaml:"version"`
	Name    string          `yaml:"name"`
	Quota   core.QuotaState `yaml:"quota"`
}

// FileBackend keeps one YAML document per record under Dir. Writes go to a
// temp file in the same directory and are renamed over the target.
type FileBackend struct {
	Dir string
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func (f *FileBackend) path(name string) (string, error) {
	if f == nil || strings.TrimSpace(f.Dir) == "" {
		return "", errors.New("quota directory is required")
	}
	clean := unsafeName.ReplaceAllString(strings.TrimSpace(name), "-")
	clean = strings.Trim(clean, "-.")
	if clean == "" {
		return "", errors.New("quota name is required")
	}
	return filepath.Join(f.Dir, clean+".yaml"), nil
}

// GetQuota reads the named record. A missing file is not an error.
func (f *FileBackend) GetQuota(ctx context.Context, name string) (*core.QuotaState, error) {
	path, err := f.path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is derived from a sanitized record name
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read quota file: %w", err)
	}

	var record fileRecord
	if err := yaml.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode quota file: %w", err)
	}
	if record.Version != fileRecordVersion {
		return nil, fmt.Errorf("unsupported quota file version %d", record.Version)
	}

	state := record.Quota
	state.WindowStart = state.WindowStart.UTC()
	return &state, nil
}

// PutQuota replaces the named record.
func (f *FileBackend) PutQuota(ctx context.Context, name string, state *core.QuotaState) (err error) {
	if state == nil {
		return errors.New("quota state is required")
	}
	path, err := f.path(name)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(fileRecord{Version: fileRecordVersion, Name: name, Quota: *state})
	if err != nil {
		return fmt.Errorf("encode quota file: %w", err)
	}

	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return fmt.Errorf("create quota directory: %w", err)
	}

	tmp, err := os.CreateTemp(f.Dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create quota temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write quota temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync quota temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close quota temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace quota file: %w", err)
	}
	return nil
}
