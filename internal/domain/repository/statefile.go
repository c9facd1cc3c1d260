package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/hangar/internal/domain/lifecycle"
	"github.com/felixgeelhaar/hangar/internal/domain/manifest"
)

// Statefile errors.
var (
	ErrStateFileCorrupt = errors.New("state file is corrupt")
	ErrSaveFailed       = errors.New("failed to save state file")
)

const stateFileVersion = 1

// StateFileDTO is the serialized form of the plugin repository. The
// manifests themselves are not persisted; they are re-read from each
// plugin's install directory at load time.
type StateFileDTO struct {
	Version int         `yaml:"version"`
	Plugins []RecordDTO `yaml:"plugins,omitempty"`
}

// RecordDTO is the serializable representation of one plugin record.
type RecordDTO struct {
	ID          string   `yaml:"id"`
	Version     string   `yaml:"version"`
	State       string   `yaml:"state"`
	InstallPath string   `yaml:"install_path"`
	ContentHash string   `yaml:"content_hash"`
	LastError   string   `yaml:"last_error,omitempty"`
	Warnings    []string `yaml:"warnings,omitempty"`
	InstalledAt string   `yaml:"installed_at"` // RFC3339 format
	UpdatedAt   string   `yaml:"updated_at"`   // RFC3339 format
}

// recordToDTO converts a record to its serializable form.
func recordToDTO(r *Record) RecordDTO {
	return RecordDTO{
		ID:          r.ID(),
		Version:     r.Version(),
		State:       string(r.State),
		InstallPath: r.InstallPath,
		ContentHash: r.ContentHash,
		LastError:   r.LastError,
		Warnings:    r.Warnings,
		InstalledAt: r.InstalledAt.Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt.Format(time.RFC3339),
	}
}

// recordFromDTO converts a DTO back to a record. The manifest carries
// only identifier and version until the install directory's descriptor
// is re-read. A state that was transient when the host stopped loads as
// error: the transition never completed.
func recordFromDTO(dto RecordDTO) (*Record, error) {
	if dto.ID == "" {
		return nil, fmt.Errorf("%w: record without id", ErrStateFileCorrupt)
	}

	installedAt, err := time.Parse(time.RFC3339, dto.InstalledAt)
	if err != nil {
		return nil, fmt.Errorf("%w: plugin %q: invalid installed_at: %v", ErrStateFileCorrupt, dto.ID, err)
	}
	updatedAt, err := time.Parse(time.RFC3339, dto.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: plugin %q: invalid updated_at: %v", ErrStateFileCorrupt, dto.ID, err)
	}

	state := lifecycle.State(dto.State)
	lastError := dto.LastError
	if state.Transient() {
		lastError = fmt.Sprintf("host stopped during %s", state)
		state = lifecycle.StateError
	}

	return &Record{
		Manifest:    &manifest.Manifest{ID: dto.ID, Version: dto.Version},
		State:       state,
		InstallPath: dto.InstallPath,
		ContentHash: dto.ContentHash,
		LastError:   lastError,
		Warnings:    dto.Warnings,
		InstalledAt: installedAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// StateFile persists plugin records to a YAML file.
type StateFile struct {
	path string
}

// NewStateFile creates a statefile handle for path.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Path returns the statefile location.
func (f *StateFile) Path() string {
	return f.path
}

// Save writes all records atomically: a temp file in the target
// directory, then a rename.
func (f *StateFile) Save(records []*Record) error {
	dto := StateFileDTO{Version: stateFileVersion}
	for _, r := range records {
		dto.Plugins = append(dto.Plugins, recordToDTO(r))
	}

	data, err := yaml.Marshal(dto)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	tmp, err := os.CreateTemp(dir, ".statefile-*.yaml")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return nil
}

// Load reads all records. A missing file is an empty repository, not an
// error.
func (f *StateFile) Load() ([]*Record, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var dto StateFileDTO
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateFileCorrupt, err)
	}

	records := make([]*Record, 0, len(dto.Plugins))
	for _, p := range dto.Plugins {
		r, err := recordFromDTO(p)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}
