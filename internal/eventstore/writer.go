package eventstore

import (
	"log/slog"
	"sync"

	"github.com/rafaeljc/valkyrie/internal/events"
	"github.com/rafaeljc/valkyrie/internal/observability"
)

// request is either an event to buffer or a flush marker. Channels are FIFO,
// so a flush marker is handled after every event enqueued before it.
type request struct {
	day   string
	event events.Event
	flush chan<- error
}

// writer owns the day-files that hash to it and buffers their events.
// Only its goroutine touches pending.
type writer struct {
	id      int
	store   *Store
	in      chan request
	pending map[string][]events.Event
}

func (w *writer) run(wg *sync.WaitGroup) {
	defer wg.Done()

	for req := range w.in {
		if req.flush != nil {
			req.flush <- w.flushAll()
			continue
		}

		observability.EventStoreQueueDepth.Dec()
		w.pending[req.day] = append(w.pending[req.day], req.event)

		if len(w.pending[req.day]) >= w.store.batchSize {
			// Failures are retained and reported by the next Flush.
			_ = w.writeDay(req.day)
		}
	}
}

func (w *writer) flushAll() error {
	var first error
	for day := range w.pending {
		if err := w.writeDay(day); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (w *writer) writeDay(day string) error {
	batch := w.pending[day]
	if len(batch) == 0 {
		delete(w.pending, day)
		return nil
	}

	written, err := w.store.appendDay(day, batch)
	if err != nil {
		observability.EventStoreWriteErrors.Inc()
		w.store.recordErr(err)
		w.store.logger.Error("failed to write events",
			slog.Int("writer", w.id),
			slog.String("day", day),
			slog.Int("events", len(batch)),
			slog.String("error", err.Error()),
		)
		return err
	}

	delete(w.pending, day)
	observability.EventsPersistedTotal.Add(float64(written))
	return nil
}
