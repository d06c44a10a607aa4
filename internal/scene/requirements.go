package scene

import (
	"strings"

	"reelforge/internal/asset"
)

// Role is the part an asset plays in the composition.
type Role string

const (
	RoleImage     Role = "image"
	RoleNarration Role = "narration"
	RoleEffect    Role = "effect"
	RoleMusic     Role = "music"
)

// Accepts reports whether an asset of the given category can fill the role.
// Scene visuals may be stills or short clips; every sound role needs audio.
func (r Role) Accepts(cat asset.Category) bool {
	switch r {
	case RoleImage:
		return cat == asset.CategoryImage || cat == asset.CategoryVideo
	case RoleNarration, RoleEffect, RoleMusic:
		return cat == asset.CategoryAudio
	default:
		return false
	}
}

// Requirement is one distinct asset name the descriptor references.
type Requirement struct {
	Name string
	Role Role
}

// Requirements is the ordered, deduplicated set of asset names a descriptor
// needs before it can be assembled.
type Requirements struct {
	items []Requirement
	index map[string]int
}

// Extract walks scenes in order (image, tts, sfx) and appends the background
// track last. Names that repeat keep their first position and role.
func Extract(desc Descriptor) Requirements {
	req := Requirements{index: make(map[string]int)}
	for _, s := range desc.Scenes {
		req.add(s.Image, RoleImage)
		req.add(s.TTS, RoleNarration)
		req.add(s.SFX, RoleEffect)
	}
	req.add(desc.BGM, RoleMusic)
	return req
}

func (r *Requirements) add(name string, role Role) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if _, ok := r.index[name]; ok {
		return
	}
	r.index[name] = len(r.items)
	r.items = append(r.items, Requirement{Name: name, Role: role})
}

// Len returns the number of distinct required names.
func (r Requirements) Len() int {
	return len(r.items)
}

// Contains reports whether name is required.
func (r Requirements) Contains(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Role returns the role of a required name.
func (r Requirements) Role(name string) (Role, bool) {
	idx, ok := r.index[name]
	if !ok {
		return "", false
	}
	return r.items[idx].Role, true
}

// Names returns required names in first-reference order.
func (r Requirements) Names() []string {
	names := make([]string, len(r.items))
	for i, item := range r.items {
		names[i] = item.Name
	}
	return names
}

// Items returns a copy of the ordered requirements.
func (r Requirements) Items() []Requirement {
	out := make([]Requirement, len(r.items))
	copy(out, r.items)
	return out
}
