package blueprint

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
	"github.com/azraeltruthsay/gaia/internal/gaialog"
)

// Registry wraps a root directory holding live blueprints
// (<root>/<id>.yaml) and a candidates/ sibling
// (<root>/candidates/<id>.yaml), per spec.md §6's directory layout.
type Registry struct {
	Root string
	Log  gaialog.Logger
}

// NewRegistry builds a Registry rooted at root.
func NewRegistry(root string, log gaialog.Logger) *Registry {
	if log == nil {
		log = gaialog.NoOp()
	}
	return &Registry{Root: root, Log: log}
}

func (r *Registry) pathFor(id string, candidate bool) string {
	if candidate {
		return filepath.Join(r.Root, "candidates", id+".yaml")
	}
	return filepath.Join(r.Root, id+".yaml")
}

func (r *Registry) mdPathFor(id string, candidate bool) string {
	if candidate {
		return filepath.Join(r.Root, "candidates", id+".md")
	}
	return filepath.Join(r.Root, id+".md")
}

// Load reads the blueprint for id from the candidate or live directory.
func (r *Registry) Load(id string, candidate bool) (*Blueprint, error) {
	path := r.pathFor(id, candidate)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, gaiaerr.New("blueprint.Load", "blueprint", gaiaerr.ErrBlueprintNotFound).WithID(id)
	}
	if err != nil {
		return nil, gaiaerr.New("blueprint.Load", "blueprint", err).WithID(id)
	}
	var bp Blueprint
	if err := yaml.Unmarshal(data, &bp); err != nil {
		return nil, gaiaerr.New("blueprint.Load", "blueprint", fmt.Errorf("%w: %v", gaiaerr.ErrBlueprintIDMismatch, err)).WithID(id)
	}
	return &bp, nil
}

// LoadAllLive loads every blueprint in the live directory.
func (r *Registry) LoadAllLive() ([]*Blueprint, error) {
	return r.loadAllIn(r.Root)
}

// LoadAllCandidates loads every blueprint in the candidates directory.
func (r *Registry) LoadAllCandidates() ([]*Blueprint, error) {
	return r.loadAllIn(filepath.Join(r.Root, "candidates"))
}

func (r *Registry) loadAllIn(dir string) ([]*Blueprint, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, gaiaerr.New("blueprint.loadAllIn", "blueprint", err)
	}
	var out []*Blueprint
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		id := e.Name()[:len(e.Name())-len(".yaml")]
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			r.Log.Warn("blueprint: skipping unreadable file", map[string]interface{}{"file": e.Name(), "error": err.Error()})
			continue
		}
		var bp Blueprint
		if err := yaml.Unmarshal(data, &bp); err != nil {
			r.Log.Warn("blueprint: skipping corrupt file", map[string]interface{}{"file": e.Name(), "error": err.Error()})
			continue
		}
		_ = id
		out = append(out, &bp)
	}
	return out, nil
}

// Save writes bp to exactly one of the two directories, chosen by
// candidate. Per spec.md §4.2's path discipline: writing a non-LIVE
// blueprint to the live directory fails, and saving a LIVE-status
// blueprint to the candidates directory silently downgrades its
// in-memory status to CANDIDATE (the directory, not the embedded
// flag, is authoritative). The sibling Markdown is always rewritten.
func (r *Registry) Save(bp *Blueprint, candidate bool) error {
	if !candidate && bp.Meta.Status != StatusLive {
		return gaiaerr.New("blueprint.Save", "blueprint",
			fmt.Errorf("%w: cannot save non-live blueprint to live directory", gaiaerr.ErrBlueprintNotPromotable)).WithID(bp.ID)
	}
	if candidate && bp.Meta.Status == StatusLive {
		bp.Meta.Status = StatusCandidate
	}

	path := r.pathFor(bp.ID, candidate)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return gaiaerr.New("blueprint.Save", "blueprint", err).WithID(bp.ID)
	}
	data, err := yaml.Marshal(bp)
	if err != nil {
		return gaiaerr.New("blueprint.Save", "blueprint", err).WithID(bp.ID)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return gaiaerr.New("blueprint.Save", "blueprint", err).WithID(bp.ID)
	}

	md := RenderMarkdown(bp)
	if err := os.WriteFile(r.mdPathFor(bp.ID, candidate), []byte(md), 0o644); err != nil {
		return gaiaerr.New("blueprint.Save", "blueprint", err).WithID(bp.ID)
	}
	return nil
}

// ValidationResult holds both error and warning findings from
// ValidateCandidate; promotion fails only on errors.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// Passed reports whether there were no errors.
func (v ValidationResult) Passed() bool { return len(v.Errors) == 0 }

// ValidateCandidate runs the spec.md §4.2 validation rules against
// the candidate blueprint for id.
func (r *Registry) ValidateCandidate(id string) (ValidationResult, error) {
	bp, err := r.Load(id, true)
	if err != nil {
		return ValidationResult{}, err
	}
	return r.validate(bp, id), nil
}

func (r *Registry) validate(bp *Blueprint, requestedID string) ValidationResult {
	var result ValidationResult

	if bp.ID != requestedID {
		result.Errors = append(result.Errors, fmt.Sprintf("blueprint id %q does not match filename %q", bp.ID, requestedID))
	}

	for _, sf := range bp.SourceFiles {
		if sf.Path == "" {
			continue
		}
		if _, err := os.Stat(sf.Path); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("declared source file does not exist on disk: %s", sf.Path))
		}
	}

	if len(bp.Interfaces) == 0 {
		result.Warnings = append(result.Warnings, "blueprint declares no interfaces")
	}
	if bp.Intent.Purpose == "" && bp.Intent.CognitiveRole == "" {
		result.Warnings = append(result.Warnings, "blueprint declares no intent")
	}
	for _, c := range bp.Meta.Confidences {
		if c.Confidence == ConfidenceLow {
			result.Warnings = append(result.Warnings, fmt.Sprintf("section %q has low confidence", c.Section))
		}
	}

	return result
}

// ValidateIDMatchesFilename is the explicit ERROR rule from spec.md
// §4.2: "ERROR if blueprint id != filename", as a standalone helper
// returning an ErrBlueprintIDMismatch-wrapped error. Load() takes the
// id from the file contents; ValidateCandidate and Promote apply the
// same rule through validate rather than through this helper.
func ValidateIDMatchesFilename(bp *Blueprint, requestedID string) error {
	if bp.ID != requestedID {
		return fmt.Errorf("%w: blueprint id %q does not match filename %q", gaiaerr.ErrBlueprintIDMismatch, bp.ID, requestedID)
	}
	return nil
}

// Promote moves a candidate blueprint to live. bootstrap=true copies
// the candidate file directly to live (hand-authored seeds);
// bootstrap=false expects a live file already produced by the
// discovery worker and only flips status + stamps PromotedAt.
func (r *Registry) Promote(id string, bootstrap bool) error {
	candidateBp, err := r.Load(id, true)
	if err != nil {
		return err
	}
	result := r.validate(candidateBp, id)
	if !result.Passed() {
		return gaiaerr.New("blueprint.Promote", "blueprint",
			fmt.Errorf("%w: %v", gaiaerr.ErrBlueprintNotPromotable, result.Errors)).WithID(id)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	if bootstrap {
		live := *candidateBp
		live.Meta.Status = StatusLive
		live.Meta.PromotedAt = now
		return r.Save(&live, false)
	}

	liveBp, err := r.Load(id, false)
	if err != nil {
		return gaiaerr.New("blueprint.Promote", "blueprint",
			fmt.Errorf("expected discovery worker to have produced a live file: %w", err)).WithID(id)
	}
	liveBp.Meta.Status = StatusLive
	liveBp.Meta.PromotedAt = now
	return r.Save(liveBp, false)
}

// ComputeDivergenceScore is the weighted sum over five checks from
// spec.md §4.2: interface count, interface id set, port, gpu flag,
// dependency set. Each contributes its weight when the values differ.
// Output is clamped to [0, 1].
func ComputeDivergenceScore(candidate, live *Blueprint) float64 {
	const (
		wInterfaceCount = 0.2
		wInterfaceIDs   = 0.3
		wPort           = 0.2
		wGPU            = 0.1
		wDependencies   = 0.2
	)
	var score float64

	if len(candidate.Interfaces) != len(live.Interfaces) {
		score += wInterfaceCount
	}
	if !sameStringSet(interfaceIDs(candidate), interfaceIDs(live)) {
		score += wInterfaceIDs
	}
	if candidate.Runtime.Port != live.Runtime.Port {
		score += wPort
	}
	if candidate.Runtime.GPU != live.Runtime.GPU {
		score += wGPU
	}
	if !sameStringSet(dependencyNames(candidate), dependencyNames(live)) {
		score += wDependencies
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

func interfaceIDs(bp *Blueprint) []string {
	ids := make([]string, 0, len(bp.Interfaces))
	for _, i := range bp.Interfaces {
		ids = append(ids, i.ID)
	}
	return ids
}

func dependencyNames(bp *Blueprint) []string {
	names := make([]string, 0, len(bp.Dependencies.Services))
	for _, d := range bp.Dependencies.Services {
		names = append(names, d.Service)
	}
	return names
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, s := range a {
		set[s]++
	}
	for _, s := range b {
		set[s]--
	}
	for _, n := range set {
		if n != 0 {
			return false
		}
	}
	return true
}
