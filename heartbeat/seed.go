// Package heartbeat implements the Heartbeat Scheduler: a background
// ticker that triages dormant thought seeds (ARCHIVE/PENDING/ACT),
// runs ACT seeds through the cognition orchestrator, and performs the
// per-tick temporal awareness tasks (journal write, state bake,
// past-self interview). Grounded on spec.md §4.9 and
// original_source/.../heartbeat.py.
package heartbeat

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
	"github.com/azraeltruthsay/gaia/internal/gaialog"
)

// SeedType distinguishes knowledge-gap seeds, which fast-path to ACT
// without LLM triage, from everything else.
type SeedType string

const (
	SeedGeneral      SeedType = "general"
	SeedKnowledgeGap SeedType = "knowledge_gap"
)

// SeedStatus is a thought seed's place in the triage lifecycle.
type SeedStatus string

const (
	SeedUnreviewed SeedStatus = "unreviewed"
	SeedPending    SeedStatus = "pending"
	SeedArchived   SeedStatus = "archived"
	SeedActed      SeedStatus = "acted"
)

// ThoughtSeed is a dormant idea generated during a previous
// conversation, awaiting triage.
type ThoughtSeed struct {
	ID           string                 `yaml:"id"`
	Seed         string                 `yaml:"seed"`
	Context      map[string]interface{} `yaml:"context,omitempty"`
	Type         SeedType               `yaml:"type"`
	Status       SeedStatus             `yaml:"status"`
	Created      time.Time              `yaml:"created"`
	RevisitAfter *time.Time             `yaml:"revisit_after,omitempty"`
	Reason       string                 `yaml:"reason,omitempty"`
}

// Store persists thought seeds across the triage lifecycle. FileStore
// is the default implementation; a Redis-backed Store can sit behind
// the same interface for multi-instance deployments (SPEC_FULL.md §6).
type Store interface {
	ListUnreviewed() ([]*ThoughtSeed, error)
	// PromoteDue moves every pending seed whose RevisitAfter has passed
	// back to unreviewed and returns the promoted seeds.
	PromoteDue(now time.Time) ([]*ThoughtSeed, error)
	Save(seed *ThoughtSeed) error
	Archive(id string) error
	Defer(id string, revisitAfter time.Time) error
}

// FileStore is a directory-backed Store: one YAML file per seed under
// <root>/{unreviewed,pending,archived}/<id>.yaml. Grounded on
// blueprint.Registry's directory-of-YAML-files convention.
type FileStore struct {
	Root string
	Log  gaialog.Logger
}

// NewFileStore builds a FileStore rooted at root, creating its
// subdirectories if they don't already exist.
func NewFileStore(root string, log gaialog.Logger) (*FileStore, error) {
	if log == nil {
		log = gaialog.NoOp()
	}
	for _, sub := range []string{"unreviewed", "pending", "archived"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, gaiaerr.New("heartbeat.NewFileStore", "heartbeat", err)
		}
	}
	return &FileStore{Root: root, Log: log}, nil
}

func (s *FileStore) dir(status SeedStatus) string {
	return filepath.Join(s.Root, string(status))
}

func (s *FileStore) path(status SeedStatus, id string) string {
	return filepath.Join(s.dir(status), id+".yaml")
}

// Save writes seed into the directory matching its current Status,
// removing any stale copy from the other status directories.
func (s *FileStore) Save(seed *ThoughtSeed) error {
	data, err := yaml.Marshal(seed)
	if err != nil {
		return gaiaerr.New("heartbeat.Save", "heartbeat", err).WithID(seed.ID)
	}
	for _, status := range []SeedStatus{SeedUnreviewed, SeedPending, SeedArchived, SeedActed} {
		if status == seed.Status {
			continue
		}
		_ = os.Remove(s.path(status, seed.ID))
	}
	if err := os.WriteFile(s.path(seed.Status, seed.ID), data, 0o644); err != nil {
		return gaiaerr.New("heartbeat.Save", "heartbeat", err).WithID(seed.ID)
	}
	return nil
}

// ListUnreviewed loads every seed currently awaiting triage.
func (s *FileStore) ListUnreviewed() ([]*ThoughtSeed, error) {
	return s.listIn(SeedUnreviewed)
}

func (s *FileStore) listIn(status SeedStatus) ([]*ThoughtSeed, error) {
	entries, err := os.ReadDir(s.dir(status))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, gaiaerr.New("heartbeat.listIn", "heartbeat", err)
	}
	var out []*ThoughtSeed
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir(status), e.Name()))
		if err != nil {
			s.Log.Warn("heartbeat: failed to read seed file", map[string]interface{}{"file": e.Name(), "error": err.Error()})
			continue
		}
		var seed ThoughtSeed
		if err := yaml.Unmarshal(data, &seed); err != nil {
			s.Log.Warn("heartbeat: malformed seed file", map[string]interface{}{"file": e.Name(), "error": err.Error()})
			continue
		}
		out = append(out, &seed)
	}
	return out, nil
}

// PromoteDue moves overdue pending seeds back to unreviewed.
func (s *FileStore) PromoteDue(now time.Time) ([]*ThoughtSeed, error) {
	pending, err := s.listIn(SeedPending)
	if err != nil {
		return nil, err
	}
	var promoted []*ThoughtSeed
	for _, seed := range pending {
		if seed.RevisitAfter == nil || seed.RevisitAfter.After(now) {
			continue
		}
		seed.Status = SeedUnreviewed
		seed.RevisitAfter = nil
		if err := s.Save(seed); err != nil {
			s.Log.Warn("heartbeat: failed to promote seed", map[string]interface{}{"id": seed.ID, "error": err.Error()})
			continue
		}
		promoted = append(promoted, seed)
	}
	return promoted, nil
}

// Archive marks a seed permanently dismissed.
func (s *FileStore) Archive(id string) error {
	seed, status, err := s.find(id)
	if err != nil {
		return err
	}
	_ = status
	seed.Status = SeedArchived
	return s.Save(seed)
}

// Defer marks a seed pending, to be reconsidered after revisitAfter.
func (s *FileStore) Defer(id string, revisitAfter time.Time) error {
	seed, _, err := s.find(id)
	if err != nil {
		return err
	}
	seed.Status = SeedPending
	seed.RevisitAfter = &revisitAfter
	return s.Save(seed)
}

func (s *FileStore) find(id string) (*ThoughtSeed, SeedStatus, error) {
	for _, status := range []SeedStatus{SeedUnreviewed, SeedPending, SeedArchived, SeedActed} {
		data, err := os.ReadFile(s.path(status, id))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, "", gaiaerr.New("heartbeat.find", "heartbeat", err).WithID(id)
		}
		var seed ThoughtSeed
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return nil, "", gaiaerr.New("heartbeat.find", "heartbeat", fmt.Errorf("%w: %v", gaiaerr.ErrSeedNotFound, err)).WithID(id)
		}
		return &seed, status, nil
	}
	return nil, "", gaiaerr.New("heartbeat.find", "heartbeat", gaiaerr.ErrSeedNotFound).WithID(id)
}
