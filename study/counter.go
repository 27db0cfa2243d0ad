package study

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
)

// DirAdapterCounter counts existing adapters on disk by tier, one
// directory per adapter named "<tier>-<adapter-name>" under Dir.
type DirAdapterCounter struct {
	Dir string
}

// Count implements AdapterCounter by listing Dir for entries prefixed
// with tier's name.
func (c DirAdapterCounter) Count(tier Tier) (int, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, gaiaerr.New("study.DirAdapterCounter.Count", "study", err)
	}
	prefix := string(tier) + "-"
	count := 0
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			count++
		}
	}
	return count, nil
}

// AdapterDirFor derives the on-disk directory name for a completed
// adapter so /adapters* listings and the trainer output agree on layout.
func AdapterDirFor(dir string, tier Tier, name string) string {
	return filepath.Join(dir, string(tier)+"-"+name)
}
