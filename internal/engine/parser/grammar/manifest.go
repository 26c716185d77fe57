package grammar

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest pins a grammar shared object to a checksum so that a swapped
// library is refused before it is dlopen'ed.
type Manifest struct {
	Version  int      `toml:"version"`
	Artifact Artifact `toml:"artifact"`
}

type Artifact struct {
	Language         string `toml:"language"`
	SharedObjectPath string `toml:"so_path"`
	SharedObjectHash string `toml:"so_sha256"`
	Source           string `toml:"source"`
	ApprovedDate     string `toml:"approved_date"`
}

func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}

	var manifest Manifest
	if _, err := toml.Decode(string(data), &manifest); err != nil {
		return Manifest{}, err
	}
	if manifest.Version <= 0 {
		return Manifest{}, fmt.Errorf("manifest version must be > 0")
	}

	a := &manifest.Artifact
	a.Language = strings.TrimSpace(strings.ToLower(a.Language))
	a.SharedObjectPath = strings.TrimSpace(a.SharedObjectPath)
	a.SharedObjectHash = strings.TrimSpace(strings.ToLower(a.SharedObjectHash))
	a.Source = strings.TrimSpace(a.Source)
	a.ApprovedDate = strings.TrimSpace(a.ApprovedDate)

	if a.Language == "" {
		return Manifest{}, fmt.Errorf("artifact.language must not be empty")
	}
	if a.SharedObjectPath == "" || a.SharedObjectHash == "" {
		return Manifest{}, fmt.Errorf("artifact.so_path and so_sha256 must not be empty")
	}
	if !filepath.IsAbs(a.SharedObjectPath) {
		a.SharedObjectPath = filepath.Join(filepath.Dir(path), a.SharedObjectPath)
	}
	a.SharedObjectPath = filepath.Clean(a.SharedObjectPath)
	return manifest, nil
}
