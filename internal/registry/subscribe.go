package registry

import (
	"log"
	"strings"

	"llmfit/internal/events"
)

// Subscribe attaches a buffered event channel to a run. The channel is
// closed when the run reaches a terminal status or when the returned
// unsubscribe function runs, whichever comes first. Subscribing to a run
// that is already terminal returns an immediately-closed channel.
func (r *Registry) Subscribe(runID string) (<-chan events.Event, func(), error) {
	r.mu.RLock()
	rn, ok := r.runs[strings.TrimSpace(runID)]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, ErrNotFound
	}

	ch := make(chan events.Event, r.opts.EventBuffer)

	rn.mu.Lock()
	if rn.status.Status.Terminal() {
		rn.mu.Unlock()
		close(ch)
		return ch, func() {}, nil
	}
	rn.subs[ch] = struct{}{}
	rn.mu.Unlock()

	unsubscribe := func() {
		rn.mu.Lock()
		_, live := rn.subs[ch]
		delete(rn.subs, ch)
		rn.mu.Unlock()
		// Only the remover closes; finalize may have beaten us to it.
		if live {
			close(ch)
		}
	}
	return ch, unsubscribe, nil
}

// dispatch fans one event out to every subscriber and folds selected event
// kinds back into the status view. Pushes never block: a full subscriber
// drops the event.
func (r *Registry) dispatch(rn *run, ev events.Event) {
	rn.mu.Lock()
	switch ev.(type) {
	case events.PipelineStage:
		rn.status.Stage = rn.st.CurrentStage
		rn.status.Progress = rn.st.Progress()
	case events.DimensionComplete:
		rn.status.Progress = rn.st.Progress()
	}
	for ch := range rn.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("registry: run %s subscriber full, dropping %s", rn.id, ev.EventType())
		}
	}
	rn.mu.Unlock()
}

func (r *Registry) closeSubs(rn *run) {
	rn.mu.Lock()
	chans := make([]chan events.Event, 0, len(rn.subs))
	for ch := range rn.subs {
		chans = append(chans, ch)
		delete(rn.subs, ch)
	}
	rn.mu.Unlock()
	for _, ch := range chans {
		close(ch)
	}
}
