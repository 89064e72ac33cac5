package migration

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	upSuffix   = "_up.sql"
	downSuffix = "_down.sql"
)

var ErrInvalidPatch = errors.New("invalid migration patch")

// Patch is one named SQL change with the SQL undoing it.
type Patch struct {
	Name        string
	Patch       string
	RevertPatch string
}

// NewLayoutPatch names a generated patch after what it lays out and a digest of its SQL,
// as <prefix>_<subject>_<digest>. A changed layout therefore gets a patch of its own
// while an unchanged one keeps its name and is not applied twice.
func NewLayoutPatch(prefix, subject, patch, revert string) *Patch {
	digest := fnv.New32a()
	_, _ = digest.Write([]byte(patch))

	return &Patch{
		Name:        fmt.Sprintf("%s_%s_%08x", prefix, strings.ToLower(subject), digest.Sum32()),
		Patch:       patch,
		RevertPatch: revert,
	}
}

// Validate rejects patches that could never be applied.
func (p *Patch) Validate() error {
	switch {
	case p == nil:
		return fmt.Errorf("%w: nil patch", ErrInvalidPatch)
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: patch has no name", ErrInvalidPatch)
	case strings.TrimSpace(p.Patch) == "":
		return fmt.Errorf("%w: %s has no sql", ErrInvalidPatch, p.Name)
	}
	return nil
}

// ReadDir loads the *.sql patches of dir in name order. A <name>_down.sql file is the
// revert of <name>_up.sql and never a patch of its own. A missing dir holds no patches.
func ReadDir(dir string) ([]*Patch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}

	reverts := map[string]string{}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}
		if strings.HasSuffix(name, downSuffix) {
			content, readErr := os.ReadFile(filepath.Join(dir, name))
			if readErr != nil {
				return nil, fmt.Errorf("read revert %s: %w", name, readErr)
			}
			reverts[strings.TrimSuffix(name, downSuffix)+upSuffix] = string(content)
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)

	patches := make([]*Patch, 0, len(names))
	for _, name := range names {
		content, readErr := os.ReadFile(filepath.Join(dir, name))
		if readErr != nil {
			return nil, fmt.Errorf("read patch %s: %w", name, readErr)
		}
		patches = append(patches, &Patch{Name: name, Patch: string(content), RevertPatch: reverts[name]})
	}
	return patches, nil
}
