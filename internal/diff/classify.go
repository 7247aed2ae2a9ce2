package diff

import (
	"sort"

	"github.com/TheMichaelB/syncvault/internal/models"
)

// Classify compares local and server file sets path by path. Equal content
// hashes are never a difference, whatever their mod times. Differing content
// is Modified when the mod times differ and a conflict when they are equal,
// since timestamps then give no hint which side is authoritative.
func Classify(local, server map[string]models.FileFingerprint) models.Differences {
	d := models.NewDifferences()

	for path, l := range local {
		s, ok := server[path]
		switch {
		case !ok:
			d.LocalOnly = append(d.LocalOnly, path)
		case l.SameContent(s):
			// touch without content change
		case l.ModTime != s.ModTime:
			d.Modified = append(d.Modified, path)
		default:
			d.Conflicts = append(d.Conflicts, path)
		}
	}

	for path := range server {
		if _, ok := local[path]; !ok {
			d.ServerOnly = append(d.ServerOnly, path)
		}
	}

	sort.Strings(d.LocalOnly)
	sort.Strings(d.ServerOnly)
	sort.Strings(d.Modified)
	sort.Strings(d.Conflicts)

	return d
}
