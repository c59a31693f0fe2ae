// Package seo builds and serves the site's JSON-LD structured data fragments.
package seo

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Fragment is one injected <script type="application/ld+json"> block.
type Fragment struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// FragmentSet holds injected fragments keyed by element ID. A second
// injection under the same ID is rejected, which is what keeps the schema
// gate from double-inserting on repeated fires.
type FragmentSet struct {
	mu        sync.RWMutex
	fragments map[string]Fragment
	order     []string
}

// NewFragmentSet creates an empty fragment set.
func NewFragmentSet() *FragmentSet {
	return &FragmentSet{
		fragments: make(map[string]Fragment),
	}
}

// Inject adds payload under id. Returns false if id is already present.
func (fs *FragmentSet) Inject(id string, payload any) (bool, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("failed to marshal schema payload %s: %w", id, err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.fragments[id]; exists {
		return false, nil
	}
	fs.fragments[id] = Fragment{ID: id, Payload: raw}
	fs.order = append(fs.order, id)
	return true, nil
}

// Has reports whether a fragment with id has been injected.
func (fs *FragmentSet) Has(id string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, exists := fs.fragments[id]
	return exists
}

// Fragments returns the injected fragments in injection order.
func (fs *FragmentSet) Fragments() []Fragment {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	out := make([]Fragment, 0, len(fs.order))
	for _, id := range fs.order {
		out = append(out, fs.fragments[id])
	}
	return out
}

// Render returns the fragments as HTML script tags for SSR inclusion.
func (fs *FragmentSet) Render() string {
	var b strings.Builder
	for _, frag := range fs.Fragments() {
		b.WriteString(`<script type="application/ld+json" id="`)
		b.WriteString(frag.ID)
		b.WriteString(`">`)
		b.Write(frag.Payload)
		b.WriteString("</script>\n")
	}
	return b.String()
}
