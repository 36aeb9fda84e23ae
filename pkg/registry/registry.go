// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

//go:embed branches.json
var defaultDocument []byte

var (
	ErrEmptyRegistry = errors.New("registry has no branches")
	ErrInvalidBranch = errors.New("invalid branch")
)

// Registry is an immutable, ordered set of branches.
type Registry struct {
	branches []Branch
	byID     map[string]int
}

func New(branches []Branch) (*Registry, error) {
	if len(branches) == 0 {
		return nil, ErrEmptyRegistry
	}

	r := &Registry{
		branches: make([]Branch, len(branches)),
		byID:     make(map[string]int, len(branches)),
	}
	copy(r.branches, branches)

	for i, b := range r.branches {
		if b.ID == "" || b.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has empty id or name", ErrInvalidBranch, i)
		}
		if !b.Type.Valid() {
			return nil, fmt.Errorf("%w: %s has unknown type %q", ErrInvalidBranch, b.ID, b.Type)
		}
		if _, dup := r.byID[b.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidBranch, b.ID)
		}
		r.byID[b.ID] = i
	}
	return r, nil
}

func Parse(data []byte) (*Registry, *Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode registry: %w", err)
	}
	reg, err := New(doc.Branches)
	if err != nil {
		return nil, nil, err
	}
	return reg, &doc, nil
}

func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	reg, _, err := Parse(data)
	return reg, err
}

// Default returns the embedded Songpa-gu registry.
func Default() *Registry {
	reg, _, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("embedded registry is invalid: %v", err))
	}
	return reg
}

// Lookup resolves a display name scraped from a catalog page. An exact name
// match wins; otherwise the first branch whose name contains the token.
func (r *Registry) Lookup(name string) (Branch, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Branch{}, false
	}
	for _, b := range r.branches {
		if b.Name == name {
			return b, true
		}
	}
	for _, b := range r.branches {
		if strings.Contains(b.Name, name) {
			return b, true
		}
	}
	return Branch{}, false
}

func (r *Registry) ByID(id string) (Branch, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Branch{}, false
	}
	return r.branches[i], true
}

func (r *Registry) All() []Branch {
	out := make([]Branch, len(r.branches))
	copy(out, r.branches)
	return out
}

func (r *Registry) ByType(t BranchType) []Branch {
	var out []Branch
	for _, b := range r.branches {
		if b.Type == t {
			out = append(out, b)
		}
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.branches)
}

func (r *Registry) Stats() Stats {
	s := Stats{Total: len(r.branches)}
	for _, b := range r.branches {
		switch b.Type {
		case BranchTypePublic:
			s.Public++
		case BranchTypeSmart:
			s.Smart++
		case BranchTypeEducation:
			s.Education++
		}
	}
	return s
}
