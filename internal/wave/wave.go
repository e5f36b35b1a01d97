package wave

import "time"

const (
	// NumChunks is the number of equal partitions the sample buffer is split into.
	NumChunks = 150
	// MaxSelectionChunks caps how many chunks a selection may span.
	MaxSelectionChunks = 37
	// MinParticleSpread and MaxParticleSpread bound the selection's spread value.
	MinParticleSpread = 1.0
	MaxParticleSpread = 8.0
	// MaxCursorAge is how long a cursor survives without a refresh.
	MaxCursorAge = 5000 * time.Millisecond
)

// Chunk summarizes one partition of the buffer for display.
type Chunk struct {
	Top    float64
	Bottom float64
	Empty  bool
}

func emptyChunk() Chunk { return Chunk{Empty: true} }

func newChunk(top, bottom float64) Chunk {
	return Chunk{Top: clamp(top, -1, 1), Bottom: clamp(bottom, -1, 1)}
}

// Selection is the contiguous chunk range grains are drawn from.
// The zero value is not meaningful; use NullSelection.
type Selection struct {
	Start          int
	Size           int
	ParticleSpread float64
	Null           bool
}

// NullSelection is the state before the performer has selected anything.
func NullSelection() Selection {
	return Selection{ParticleSpread: MinParticleSpread, Null: true}
}

// NewSelection builds a selection with every field clamped into range.
func NewSelection(start, size int, spread float64) Selection {
	start = clampInt(start, 0, NumChunks-1)
	maxSize := min(MaxSelectionChunks, NumChunks-start)
	return Selection{
		Start:          start,
		Size:           clampInt(size, 1, maxSize),
		ParticleSpread: clamp(spread, MinParticleSpread, MaxParticleSpread),
	}
}

// End returns the index of the last chunk in the selection, or 0 when null.
func (s Selection) End() int {
	if s.Null {
		return 0
	}
	return s.Start + s.Size - 1
}

// Contains reports whether chunk index i lies inside the selection.
func (s Selection) Contains(i int) bool {
	if s.Null {
		return false
	}
	return i >= s.Start && i <= s.End()
}

// SelectionUpdate carries the fields to change; nil fields keep their value.
type SelectionUpdate struct {
	Start          *int
	Size           *int
	ParticleSpread *float64
}

// Update returns the selection with u applied and re-clamped. A null
// selection stays null unless u supplies a start or a size.
func (s Selection) Update(u SelectionUpdate) Selection {
	if s.Null && u.Start == nil && u.Size == nil {
		return s
	}
	start, size, spread := s.Start, s.Size, s.ParticleSpread
	if u.Start != nil {
		start = *u.Start
	}
	if u.Size != nil {
		size = *u.Size
	}
	if u.ParticleSpread != nil {
		spread = *u.ParticleSpread
	}
	return NewSelection(start, size, spread)
}

// Cursor marks the playhead of a sounding grain, in chunk units.
type Cursor struct {
	ID         uint64
	Position   float64
	LastUpdate time.Time
}

// Expired reports whether the cursor has gone unrefreshed for longer than maxAge.
func (c Cursor) Expired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(c.LastUpdate) > maxAge
}

// Wave is an immutable snapshot of the instrument's visible state. Every
// mutator returns a new Wave and never shares a cursor slice with its input.
type Wave struct {
	chunks      [NumChunks]Chunk
	selection   Selection
	cursors     []Cursor
	filterCoeff float64
}

// New returns a wave with empty chunks, a null selection and no cursors.
func New() Wave {
	w := Wave{selection: NullSelection(), filterCoeff: 1}
	for i := range w.chunks {
		w.chunks[i] = emptyChunk()
	}
	return w
}

// Reset empties every chunk and drops all cursors. The selection is kept
// only when onlyChunks is set.
func (w Wave) Reset(onlyChunks bool) Wave {
	out := New()
	out.filterCoeff = w.filterCoeff
	if onlyChunks {
		out.selection = w.selection
	}
	return out
}

// SetChunk stores clamped extrema for chunk idx. Out-of-range indices are ignored.
func (w Wave) SetChunk(idx int, top, bottom float64) Wave {
	if idx < 0 || idx >= NumChunks {
		return w
	}
	w.cursors = cloneCursors(w.cursors)
	w.chunks[idx] = newChunk(top, bottom)
	return w
}

// Chunk returns chunk i and whether i is a valid index.
func (w Wave) Chunk(i int) (Chunk, bool) {
	if i < 0 || i >= NumChunks {
		return Chunk{}, false
	}
	return w.chunks[i], true
}

// Chunks returns a copy of every chunk.
func (w Wave) Chunks() []Chunk {
	out := make([]Chunk, NumChunks)
	copy(out, w.chunks[:])
	return out
}

func (w Wave) Selection() Selection { return w.selection }

// UpdateSelection applies u to the current selection.
func (w Wave) UpdateSelection(u SelectionUpdate) Wave {
	w.cursors = cloneCursors(w.cursors)
	w.selection = w.selection.Update(u)
	return w
}

// SelectionChunks returns the chunks covered by the selection.
func (w Wave) SelectionChunks() []Chunk {
	if w.selection.Null {
		return nil
	}
	out := make([]Chunk, w.selection.Size)
	copy(out, w.chunks[w.selection.Start:w.selection.End()+1])
	return out
}

func (w Wave) FilterCoeff() float64 { return w.filterCoeff }

// SetFilterCoeff stores the normalized filter amount, clamped to [0,1].
func (w Wave) SetFilterCoeff(c float64) Wave {
	w.cursors = cloneCursors(w.cursors)
	w.filterCoeff = clamp(c, 0, 1)
	return w
}

// SetCursor inserts or refreshes the cursor with the given id.
func (w Wave) SetCursor(id uint64, position float64, now time.Time) Wave {
	position = clamp(position, 0, NumChunks-1)
	cursors := cloneCursors(w.cursors)
	for i := range cursors {
		if cursors[i].ID == id {
			cursors[i].Position = position
			cursors[i].LastUpdate = now
			w.cursors = cursors
			return w
		}
	}
	w.cursors = append(cursors, Cursor{ID: id, Position: position, LastUpdate: now})
	return w
}

// RemoveCursor deletes the cursor with the given id, if present.
func (w Wave) RemoveCursor(id uint64) Wave {
	out := make([]Cursor, 0, len(w.cursors))
	for _, c := range w.cursors {
		if c.ID != id {
			out = append(out, c)
		}
	}
	w.cursors = out
	return w
}

// CleanupExpiredCursors drops cursors not refreshed within maxAge of now.
func (w Wave) CleanupExpiredCursors(now time.Time, maxAge time.Duration) Wave {
	w.cursors = liveCursors(w.cursors, now, maxAge)
	return w
}

// Cursors returns a copy of every cursor, expired or not.
func (w Wave) Cursors() []Cursor { return cloneCursors(w.cursors) }

// ActiveCursors returns the cursors still within MaxCursorAge of now.
func (w Wave) ActiveCursors(now time.Time) []Cursor {
	return liveCursors(w.cursors, now, MaxCursorAge)
}

// IncrementSelectionSize grows the selection by one chunk. A null selection
// becomes the first chunk.
func (w Wave) IncrementSelectionSize() Wave {
	s := w.selection
	if s.Null {
		start, size := 0, 1
		return w.UpdateSelection(SelectionUpdate{Start: &start, Size: &size})
	}
	size := s.Size + 1
	if size > min(MaxSelectionChunks, NumChunks-s.Start) {
		return w
	}
	return w.UpdateSelection(SelectionUpdate{Size: &size})
}

func (w Wave) DecrementSelectionSize() Wave {
	s := w.selection
	if s.Null || s.Size <= 1 {
		return w
	}
	size := s.Size - 1
	return w.UpdateSelection(SelectionUpdate{Size: &size})
}

func (w Wave) IncrementSelectionStart() Wave {
	s := w.selection
	if s.Null || s.Start+1 > NumChunks-s.Size {
		return w
	}
	start := s.Start + 1
	return w.UpdateSelection(SelectionUpdate{Start: &start})
}

func (w Wave) DecrementSelectionStart() Wave {
	s := w.selection
	if s.Null || s.Start <= 0 {
		return w
	}
	start := s.Start - 1
	return w.UpdateSelection(SelectionUpdate{Start: &start})
}

func (w Wave) IncrementParticleSpread() Wave {
	if w.selection.Null {
		return w
	}
	spread := min(MaxParticleSpread, w.selection.ParticleSpread+1)
	return w.UpdateSelection(SelectionUpdate{ParticleSpread: &spread})
}

func (w Wave) DecrementParticleSpread() Wave {
	if w.selection.Null {
		return w
	}
	spread := max(MinParticleSpread, w.selection.ParticleSpread-1)
	return w.UpdateSelection(SelectionUpdate{ParticleSpread: &spread})
}

func cloneCursors(in []Cursor) []Cursor {
	if len(in) == 0 {
		return nil
	}
	out := make([]Cursor, len(in))
	copy(out, in)
	return out
}

func liveCursors(in []Cursor, now time.Time, maxAge time.Duration) []Cursor {
	out := make([]Cursor, 0, len(in))
	for _, c := range in {
		if !c.Expired(now, maxAge) {
			out = append(out, c)
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
