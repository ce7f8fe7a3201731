package responses

import "strings"

const fragmentSeparator = "\n"

// MaxContentIndex is the highest content index a delta may address. Providers
// use a handful of parallel text channels; anything beyond this is treated as
// a malformed frame.
const MaxContentIndex = 1023

// Assembler collects text deltas into fragments keyed by content index.
// Fragments only grow: a delta is appended to its fragment, and a delta for
// an index past the end creates empty fragments for every index in between.
//
// An Assembler is not safe for concurrent use.
type Assembler struct {
	fragments []*strings.Builder
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// ApplyDelta appends text to the fragment at index. Negative indices are
// treated as 0 and indices above MaxContentIndex are ignored.
func (a *Assembler) ApplyDelta(index int, text string) {
	if index < 0 {
		index = 0
	}
	if index > MaxContentIndex {
		return
	}
	for len(a.fragments) <= index {
		a.fragments = append(a.fragments, &strings.Builder{})
	}
	a.fragments[index].WriteString(text)
}

// Text returns all fragments in index order joined by a newline.
func (a *Assembler) Text() string {
	parts := make([]string, len(a.fragments))
	for i, f := range a.fragments {
		parts[i] = f.String()
	}
	return strings.Join(parts, fragmentSeparator)
}

// Len returns the number of fragments, including empty gap fillers.
func (a *Assembler) Len() int {
	return len(a.fragments)
}
