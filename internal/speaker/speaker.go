// Package speaker maps speaker ids produced by transcription to display
// names, and records merges of one speaker into another.
package speaker

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// MaxNameLength is the longest accepted display name, in characters.
const MaxNameLength = 50

var (
	ErrUnknownSpeaker = errors.New("unknown speaker")
	ErrInvalidName    = errors.New("invalid speaker name")
	ErrDuplicateName  = errors.New("speaker name already in use")
	ErrMergeCycle     = errors.New("speaker merge would create a cycle")
)

var diarizedID = regexp.MustCompile(`^SPEAKER_(\d+)$`)

type nameInput struct {
	Name string `validate:"max=50"`
}

// Registry is the mutable speaker table. It is safe for concurrent use;
// conversions read immutable snapshots of it.
type Registry struct {
	mu       sync.RWMutex
	known    []string
	names    map[string]string
	merges   map[string]string
	version  uint64
	validate *validator.Validate
}

func NewRegistry() *Registry {
	return &Registry{
		names:    make(map[string]string),
		merges:   make(map[string]string),
		validate: validator.New(),
	}
}

// Restore builds a registry from persisted names and merges.
func Restore(names, merges map[string]string) *Registry {
	r := NewRegistry()
	for id, name := range names {
		r.names[id] = name
		r.addKnown(id)
	}
	for from, into := range merges {
		r.merges[from] = into
		r.addKnown(from, into)
	}
	return r
}

// Register records speaker ids seen in the transcript.
func (r *Registry) Register(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addKnown(ids...) {
		r.version++
	}
}

func (r *Registry) addKnown(ids ...string) bool {
	added := false
	for _, id := range ids {
		if id == "" || r.isKnown(id) {
			continue
		}
		r.known = append(r.known, id)
		added = true
	}
	sort.Strings(r.known)
	return added
}

func (r *Registry) isKnown(id string) bool {
	for _, k := range r.known {
		if k == id {
			return true
		}
	}
	return false
}

// SetName assigns a display name. An empty name clears it, falling back to the
// automatic name.
func (r *Registry) SetName(id, name string) error {
	name = strings.TrimSpace(name)
	if err := r.validate.Struct(nameInput{Name: name}); err != nil {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidName, MaxNameLength)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isKnown(id) {
		return fmt.Errorf("%w: %q", ErrUnknownSpeaker, id)
	}
	id = r.resolve(id)

	if name == "" {
		delete(r.names, id)
		r.version++
		return nil
	}

	for _, other := range r.active() {
		if other == id {
			continue
		}
		if strings.EqualFold(r.displayName(other), name) {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}

	r.names[id] = name
	r.version++
	return nil
}

// Merge folds speaker from into speaker into. Lookups of from resolve to into.
func (r *Registry) Merge(from, into string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range []string{from, into} {
		if !r.isKnown(id) {
			return fmt.Errorf("%w: %q", ErrUnknownSpeaker, id)
		}
	}
	target := r.resolve(into)
	if target == r.resolve(from) {
		return fmt.Errorf("%w: %q and %q", ErrMergeCycle, from, into)
	}

	r.merges[r.resolve(from)] = target
	r.version++
	return nil
}

// Resolve follows merge chains to the canonical speaker id.
func (r *Registry) Resolve(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolve(id)
}

func (r *Registry) resolve(id string) string {
	return resolve(r.merges, id)
}

func resolve(merges map[string]string, id string) string {
	seen := map[string]bool{}
	for {
		next, ok := merges[id]
		if !ok || seen[id] {
			return id
		}
		seen[id] = true
		id = next
	}
}

// DisplayName resolves the id and returns its name, or the automatic name.
func (r *Registry) DisplayName(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.displayName(r.resolve(id))
}

func (r *Registry) displayName(canonical string) string {
	return displayName(r.names, canonical)
}

func displayName(names map[string]string, canonical string) string {
	if name, ok := names[canonical]; ok {
		return name
	}
	return AutoName(canonical)
}

// AutoName derives a readable default: SPEAKER_03 becomes "Speaker 4".
func AutoName(id string) string {
	if m := diarizedID.FindStringSubmatch(id); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return fmt.Sprintf("Speaker %d", n+1)
		}
	}
	if id == "" {
		return "Unknown"
	}
	return id
}

// Active lists the known speakers that have not been merged away.
func (r *Registry) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active()
}

func (r *Registry) active() []string {
	var out []string
	for _, id := range r.known {
		if _, merged := r.merges[id]; !merged {
			out = append(out, id)
		}
	}
	return out
}

// Version increases with every change, so cached renderings can be invalidated.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Snapshot copies the current table.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		names:   make(map[string]string, len(r.names)),
		merges:  make(map[string]string, len(r.merges)),
		version: r.version,
	}
	for k, v := range r.names {
		s.names[k] = v
	}
	for k, v := range r.merges {
		s.merges[k] = v
	}
	return s
}

// Snapshot is an immutable view of the registry.
type Snapshot struct {
	names   map[string]string
	merges  map[string]string
	version uint64
}

func (s Snapshot) Resolve(id string) string {
	return resolve(s.merges, id)
}

func (s Snapshot) DisplayName(id string) string {
	return displayName(s.names, s.Resolve(id))
}

func (s Snapshot) Version() uint64 {
	return s.version
}

// Names returns a copy of the custom display names.
func (s Snapshot) Names() map[string]string {
	out := make(map[string]string, len(s.names))
	for k, v := range s.names {
		out[k] = v
	}
	return out
}

// Merges returns a copy of the merge table.
func (s Snapshot) Merges() map[string]string {
	out := make(map[string]string, len(s.merges))
	for k, v := range s.merges {
		out[k] = v
	}
	return out
}
