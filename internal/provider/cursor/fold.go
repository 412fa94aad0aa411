package cursor

import (
	cursorapi "github.com/jmswain/switchboard/internal/api/cursor"
	"github.com/jmswain/switchboard/internal/domain"
)

// callFolder accumulates tool-call fragments into completed calls. Argument
// chunks for one id append in arrival order; the fragment carrying isLast
// finalizes the call. A given id finalizes at most once: stray fragments
// arriving after finalization are dropped, never folded into the finished
// call. Finalization order is completion order, with still-open calls closed
// at end of stream in first-sight order.
type callFolder struct {
	open      map[string]*domain.ToolCallRef
	openOrder []string
	closed    map[string]bool
	finalized []domain.ToolCallRef
	index     map[string]int
	lastID    string
}

func newCallFolder() *callFolder {
	return &callFolder{
		open:   make(map[string]*domain.ToolCallRef),
		closed: make(map[string]bool),
		index:  make(map[string]int),
	}
}

// apply folds one fragment. Fragments without an id continue the most
// recently seen call.
func (f *callFolder) apply(frag *cursorapi.ToolCallFragment) {
	if frag == nil {
		return
	}
	id := frag.ID
	if id == "" {
		id = f.lastID
	}
	if id == "" || f.closed[id] {
		return
	}
	f.lastID = id

	call, ok := f.open[id]
	if !ok {
		call = &domain.ToolCallRef{ID: id, Type: "function"}
		f.open[id] = call
		f.openOrder = append(f.openOrder, id)
		f.index[id] = len(f.index)
	}
	if frag.FunctionName != "" {
		call.Function.Name = frag.FunctionName
	}
	call.Function.Arguments += frag.ArgumentsChunk

	if frag.IsLast {
		f.closed[id] = true
		delete(f.open, id)
		f.finalized = append(f.finalized, *call)
	}
}

// chunk folds one fragment and returns its streaming delta: the first chunk
// for an id carries the call header, later chunks only the argument piece.
// The index is stable per id, assigned on first sight. Returns nil for
// fragments belonging to an already-finalized call.
func (f *callFolder) chunk(frag *cursorapi.ToolCallFragment) *domain.ToolCallChunk {
	if frag == nil {
		return nil
	}
	id := frag.ID
	if id == "" {
		id = f.lastID
	}
	if id == "" || f.closed[id] {
		return nil
	}
	_, firstSight := f.open[id]
	firstSight = !firstSight

	f.apply(frag)

	chunk := &domain.ToolCallChunk{Index: f.index[id]}
	chunk.Function.Arguments = frag.ArgumentsChunk
	if firstSight {
		chunk.ID = id
		chunk.Type = "function"
		chunk.Function.Name = frag.FunctionName
	}
	return chunk
}

// finalize closes every still-open call and returns all finalized calls.
func (f *callFolder) finalize() []domain.ToolCallRef {
	for _, id := range f.openOrder {
		call, ok := f.open[id]
		if !ok {
			continue
		}
		f.closed[id] = true
		delete(f.open, id)
		f.finalized = append(f.finalized, *call)
	}
	if len(f.finalized) == 0 {
		return nil
	}
	return f.finalized
}
