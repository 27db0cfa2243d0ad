package study

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
)

// AdapterStore persists Job Results to disk under one directory per
// adapter, answering the `/adapters*` listing endpoints without this
// package depending on any particular database.
type AdapterStore struct {
	Dir string
}

// NewAdapterStore builds an AdapterStore rooted at dir.
func NewAdapterStore(dir string) *AdapterStore {
	return &AdapterStore{Dir: dir}
}

// Save writes result's metadata to <Dir>/<tier>-<name>/result.json.
func (s *AdapterStore) Save(result *Result) error {
	dir := AdapterDirFor(s.Dir, result.Tier, result.AdapterName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return gaiaerr.New("study.AdapterStore.Save", "study", err)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return gaiaerr.New("study.AdapterStore.Save", "study", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "result.json"), data, 0o644); err != nil {
		return gaiaerr.New("study.AdapterStore.Save", "study", err)
	}
	return nil
}

// List returns every persisted adapter Result, for the `GET /adapters`
// listing endpoint.
func (s *AdapterStore) List() ([]*Result, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, gaiaerr.New("study.AdapterStore.List", "study", err)
	}
	var out []*Result
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.Dir, e.Name(), "result.json"))
		if err != nil {
			continue
		}
		var r Result
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		out = append(out, &r)
	}
	return out, nil
}

// Delete removes a persisted adapter by tier and name, for the
// `DELETE /adapters/{name}` revocation path.
func (s *AdapterStore) Delete(tier Tier, name string) error {
	dir := AdapterDirFor(s.Dir, tier, name)
	if err := os.RemoveAll(dir); err != nil {
		return gaiaerr.New("study.AdapterStore.Delete", "study", err)
	}
	return nil
}
