package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LockEntry records one installed skill in the workdir lockfile.
type LockEntry struct {
	Version     string    `json:"version"`
	InstalledAt time.Time `json:"installedAt"`
}

// Lockfile maps installed slugs to their versions under one workdir.
type Lockfile struct {
	Skills map[string]LockEntry `json:"skills"`
}

// OriginMarker records where an installed skill folder came from.
type OriginMarker struct {
	Version          int       `json:"version"`
	Registry         string    `json:"registry"`
	Slug             string    `json:"slug"`
	InstalledVersion string    `json:"installedVersion"`
	InstalledAt      time.Time `json:"installedAt"`
}

func lockfilePath(workdir string) string {
	return filepath.Join(workdir, ".clawdhub", "lock.json")
}

// LoadLockfile reads the workdir lockfile; a missing file yields an empty one.
func LoadLockfile(workdir string) (*Lockfile, error) {
	data, err := os.ReadFile(lockfilePath(workdir))
	if os.IsNotExist(err) {
		return &Lockfile{Skills: map[string]LockEntry{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var lock Lockfile
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lockfile: %w", err)
	}
	if lock.Skills == nil {
		lock.Skills = map[string]LockEntry{}
	}
	return &lock, nil
}

// SaveLockfile writes the workdir lockfile, creating .clawdhub if needed.
func SaveLockfile(workdir string, lock *Lockfile) error {
	path := lockfilePath(workdir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// WriteOriginMarker records the install origin inside the skill folder.
func WriteOriginMarker(skillDir string, marker *OriginMarker) error {
	dir := filepath.Join(skillDir, ".clawdhub")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "origin.json"), append(data, '\n'), 0o644)
}

// ReadOriginMarker loads the origin marker from a skill folder, nil when absent.
func ReadOriginMarker(skillDir string) (*OriginMarker, error) {
	data, err := os.ReadFile(filepath.Join(skillDir, ".clawdhub", "origin.json"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var marker OriginMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return nil, fmt.Errorf("failed to parse origin marker: %w", err)
	}
	return &marker, nil
}
