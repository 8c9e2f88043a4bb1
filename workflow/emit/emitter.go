package emit

// Emitter receives observability events from workflow execution.
//
// Implementations should be:
//   - Non-blocking: never slow down the engine
//   - Thread-safe: called concurrently from fan-out workers
//   - Resilient: a failing backend must not fail the workflow
//
// Emit must not panic. Backend errors are handled internally.
type Emitter interface {
	Emit(event Event)
}

// MultiEmitter fans every event out to a list of emitters. Useful for
// combining a log emitter with the live notification broadcaster.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter creates an emitter that forwards to all of the given
// emitters in order. Nil entries are skipped.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	out := make([]Emitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return &MultiEmitter{emitters: out}
}

func (m *MultiEmitter) Emit(event Event) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}
