// Package eventstore implements an append-only, file-backed event log.
//
// Events are grouped by the UTC day of their timestamp into one JSON array
// file per day (events-YYYY-MM-DD.json). Tracking calls enqueue onto a small
// pool of writer goroutines; every day-file is owned by exactly one writer, and
// each write is a read-modify-write under an exclusive file lock followed by an
// atomic rename, so several processes may share a directory.
package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rafaeljc/valkyrie/internal/config"
	"github.com/rafaeljc/valkyrie/internal/events"
	"github.com/rafaeljc/valkyrie/internal/observability"
	"github.com/rafaeljc/valkyrie/internal/validation"
)

var _ events.Sink = (*Store)(nil)

// Store is the append-only event log. It is safe for concurrent use.
type Store struct {
	dir       string
	fileMode  os.FileMode
	batchSize int
	clock     func() time.Time
	logger    *slog.Logger

	writers []*writer
	wg      sync.WaitGroup

	// mu guards closed. Senders hold the read lock while enqueuing so that
	// Close never closes a channel with a send in flight.
	mu     sync.RWMutex
	closed bool

	errMu   sync.Mutex
	lastErr error

	fileLocks sync.Map // path -> *sync.Mutex
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now for event timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open creates the directory if needed, checks that it is writable and starts
// the writer pool. The returned error is a *StorageError when the directory
// cannot be used.
func Open(cfg *config.EventStoreConfig, opts ...Option) (*Store, error) {
	validation.AssertNotNil(cfg, "event store config")

	s := &Store{
		dir:       cfg.Dir,
		fileMode:  cfg.FileMode,
		batchSize: max(cfg.BatchSize, 1),
		clock:     time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fileMode == 0 {
		s.fileMode = 0o644
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, &StorageError{Op: "mkdir", Path: s.dir, Err: err}
	}
	if err := checkWritable(s.dir); err != nil {
		return nil, err
	}

	workers := max(cfg.Workers, 1)
	queueSize := max(cfg.QueueSize, 1)

	s.writers = make([]*writer, workers)
	for i := range s.writers {
		w := &writer{
			id:      i,
			store:   s,
			in:      make(chan request, queueSize),
			pending: make(map[string][]events.Event),
		}
		s.writers[i] = w
		s.wg.Add(1)
		go w.run(&s.wg)
	}

	s.logger.Info("event store opened",
		slog.String("dir", s.dir),
		slog.Int("workers", workers),
		slog.Int("queue_size", queueSize),
		slog.Int("batch_size", s.batchSize),
	)

	return s, nil
}

// Dir returns the directory holding the day-files.
func (s *Store) Dir() string {
	return s.dir
}

// TrackImpression records that slideIndex of entityID was shown.
func (s *Store) TrackImpression(entityID string, slideIndex int) error {
	return s.Track(events.NewImpression(entityID, slideIndex, s.clock()))
}

// TrackClick records a click on slideIndex of entityID. url may be nil.
func (s *Store) TrackClick(entityID string, slideIndex int, url *string) error {
	return s.Track(events.NewClick(entityID, slideIndex, url, s.clock()))
}

// TrackInteraction records a custom interaction with entityID.
func (s *Store) TrackInteraction(entityID, interactionType string, data map[string]any) error {
	return s.Track(events.NewInteraction(entityID, interactionType, data, s.clock()))
}

// Track enqueues a pre-built event. A zero Timestamp is replaced by the
// store's clock. The event is copied before it is queued, so the caller may
// reuse its Data map. It blocks while the owning writer's queue is full.
func (s *Store) Track(e events.Event) error {
	if e.Timestamp == 0 {
		e.Timestamp = s.clock().Unix()
	}
	if err := e.Validate(); err != nil {
		return err
	}
	e, err := e.Detach()
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	day := DayKey(e.Time())
	observability.EventStoreQueueDepth.Inc()
	s.writerFor(day).in <- request{day: day, event: e}
	observability.EventsTrackedTotal.WithLabelValues(string(e.Kind)).Inc()

	return nil
}

// Flush blocks until every event enqueued before the call has been written,
// or ctx is done. It returns the first write error of this flush; events of a
// failed batch stay buffered and are retried by the next Flush.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.flush(ctx)
}

func (s *Store) flush(ctx context.Context) error {
	start := time.Now()
	defer func() {
		observability.EventStoreFlushDuration.Observe(time.Since(start).Seconds())
	}()

	replies := make([]chan error, len(s.writers))
	for i, w := range s.writers {
		replies[i] = make(chan error, 1)
		select {
		case w.in <- request{flush: replies[i]}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var errs []error
	for _, reply := range replies {
		select {
		case err := <-reply:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Err returns the most recent storage error that has not been reported yet
// and clears it. Tracking calls never return write failures, so this is how
// callers learn that the log is not durable.
func (s *Store) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	err := s.lastErr
	s.lastErr = nil
	return err
}

func (s *Store) recordErr(err error) {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
}

// Close flushes buffered events and stops the writers. Further calls to the
// Store return ErrClosed. Calling Close twice is a no-op.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	flushErr := s.flush(ctx)

	for _, w := range s.writers {
		close(w.in)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(flushErr, ctx.Err())
	}

	if flushErr != nil {
		s.logger.Error("event store closed with unflushed events", slog.String("error", flushErr.Error()))
		return flushErr
	}

	s.logger.Info("event store closed")
	return nil
}

// ReadDay returns the events stored for day's UTC calendar day in write order.
// A day without a file yields no events. Unparseable files yield an error
// matching ErrCorruptDayFile.
func (s *Store) ReadDay(day time.Time) ([]events.Event, error) {
	return readDayFile(s.dayPath(DayKey(day)))
}

func (s *Store) dayPath(day string) string {
	return filepath.Join(s.dir, dayFileName(day))
}

func (s *Store) writerFor(day string) *writer {
	h := fnv.New32a()
	h.Write([]byte(day))
	return s.writers[h.Sum32()%uint32(len(s.writers))]
}

func (s *Store) fileLock(path string) *sync.Mutex {
	mu, _ := s.fileLocks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// appendDay appends batch to the day-file under both the in-process mutex and
// the cross-process file lock. It returns how many events of batch were written.
func (s *Store) appendDay(day string, batch []events.Event) (int, error) {
	path := s.dayPath(day)

	mu := s.fileLock(path)
	mu.Lock()
	defer mu.Unlock()

	// The data file is replaced by rename on every write, so the lock is taken
	// on a sidecar whose inode never changes.
	lockPath := path + ".lock"
	lf, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, s.fileMode)
	if err != nil {
		return 0, &StorageError{Op: "lock", Path: lockPath, Err: err}
	}
	defer lf.Close()

	if err := lockFile(lf); err != nil {
		return 0, &StorageError{Op: "lock", Path: lockPath, Err: err}
	}
	defer unlockFile(lf)

	existing, err := readDayFile(path)
	if errors.Is(err, ErrCorruptDayFile) {
		existing, err = nil, s.quarantine(path, err)
	}
	if err != nil {
		return 0, err
	}

	all := append(existing, batch...)
	merged := make([]json.RawMessage, 0, len(all))
	for i := range all {
		raw, err := json.Marshal(&all[i])
		if err != nil {
			// Never retried: one bad event must not hold back the rest of the day.
			observability.EventsUnencodableTotal.Inc()
			s.logger.Error("dropping unencodable event",
				slog.String("path", path),
				slog.String("entity_id", all[i].EntityID),
				slog.String("kind", string(all[i].Kind)),
				slog.String("error", err.Error()),
			)
			continue
		}
		merged = append(merged, raw)
	}

	if err := writeDayFile(path, merged, s.fileMode); err != nil {
		return 0, err
	}
	return len(merged) - len(existing), nil
}

// quarantine moves an unparseable day-file aside so that new events are not
// lost behind it. The moved file is kept for manual recovery.
func (s *Store) quarantine(path string, cause error) error {
	aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().UnixNano())
	if err := os.Rename(path, aside); err != nil {
		return &StorageError{Op: "quarantine", Path: path, Err: err}
	}
	s.logger.Warn("moved corrupt day-file aside",
		slog.String("path", path),
		slog.String("moved_to", aside),
		slog.String("error", cause.Error()),
	)
	return nil
}

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return &StorageError{Op: "check", Path: dir, Err: err}
	}
	name := f.Name()
	f.Close()
	if err := os.Remove(name); err != nil {
		return &StorageError{Op: "check", Path: dir, Err: err}
	}
	return nil
}
