package bus

// Topic groups messages that share a queue and a set of subscribers.
type Topic int

const (
	// TopicWave carries buffer lifecycle and chunk summaries.
	TopicWave Topic = iota
	// TopicCursor carries grain playhead updates.
	TopicCursor
	// TopicNote carries performer note and loop changes.
	TopicNote
	numTopics
)

func (t Topic) String() string {
	switch t {
	case TopicWave:
		return "wave"
	case TopicCursor:
		return "cursor"
	case TopicNote:
		return "note"
	}
	return "unknown"
}

// Message is implemented only by the types in this package. Consumers match
// on the concrete type with a type switch.
type Message interface {
	Topic() Topic
	sealed()
}

// WaveStarted announces a new buffer; chunk messages for it follow.
type WaveStarted struct {
	Frames     int
	SampleRate int
}

// ChunkWritten carries the extrema of one summarized chunk.
type ChunkWritten struct {
	Index  int
	Top    float64
	Bottom float64
}

// CursorTrigger reports a grain's playhead position in chunk units. It is
// sent when the grain starts and again while it sounds.
type CursorTrigger struct {
	GrainID  uint64
	Position float64
}

// CursorEnd reports that a grain has stopped sounding.
type CursorEnd struct {
	GrainID uint64
}

// NoteOn and NoteOff mirror performer notes.
type NoteOn struct {
	Note     int
	Velocity float64
}

type NoteOff struct {
	Note int
}

// LoopChanged reports the loop toggle state.
type LoopChanged struct {
	On bool
}

func (WaveStarted) Topic() Topic   { return TopicWave }
func (ChunkWritten) Topic() Topic  { return TopicWave }
func (CursorTrigger) Topic() Topic { return TopicCursor }
func (CursorEnd) Topic() Topic     { return TopicCursor }
func (NoteOn) Topic() Topic        { return TopicNote }
func (NoteOff) Topic() Topic       { return TopicNote }
func (LoopChanged) Topic() Topic   { return TopicNote }

func (WaveStarted) sealed()   {}
func (ChunkWritten) sealed()  {}
func (CursorTrigger) sealed() {}
func (CursorEnd) sealed()     {}
func (NoteOn) sealed()        {}
func (NoteOff) sealed()       {}
func (LoopChanged) sealed()   {}
