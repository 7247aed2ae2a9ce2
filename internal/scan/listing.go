package scan

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/TheMichaelB/syncvault/internal/models"
)

// LoadListing reads a server file listing. The file is either a JSON array
// of fingerprints or an object keyed by path; paths are normalized and an
// object key wins over a conflicting path field.
func LoadListing(path string) (map[string]models.FileFingerprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	return ParseListing(data)
}

// ParseListing decodes listing data. See LoadListing.
func ParseListing(data []byte) (map[string]models.FileFingerprint, error) {
	var list []models.FileFingerprint
	if err := json.Unmarshal(data, &list); err == nil {
		files := make(map[string]models.FileFingerprint, len(list))
		for i, f := range list {
			if f.Path == "" {
				return nil, fmt.Errorf("listing entry %d: missing path", i)
			}
			f.Path = f.NormalizedPath()
			if _, dup := files[f.Path]; dup {
				return nil, fmt.Errorf("listing entry %d: duplicate path %s", i, f.Path)
			}
			files[f.Path] = f
		}
		return files, nil
	}

	var byPath map[string]models.FileFingerprint
	if err := json.Unmarshal(data, &byPath); err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	files := make(map[string]models.FileFingerprint, len(byPath))
	for p, f := range byPath {
		f.Path = models.NormalizePath(p)
		files[f.Path] = f
	}
	return files, nil
}

// WriteListing stores files as a JSON array, the format LoadListing reads.
func WriteListing(path string, files map[string]models.FileFingerprint) error {
	list := make([]models.FileFingerprint, 0, len(files))
	for _, p := range sortedKeys(files) {
		list = append(list, files[p])
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal listing: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write listing: %w", err)
	}
	return nil
}
