package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Kunal-Gupta28/Connectly/internal/signaling"
)

const writeTimeout = 5 * time.Second

// Recorder is a signaling.Observer that writes lifecycle events in the
// background. RoomEvent never blocks the hub; when the buffer is full the
// event is dropped and counted.
type Recorder struct {
	store   *Store
	events  chan signaling.RoomEvent
	dropped atomic.Int64
	wg      sync.WaitGroup
	once    sync.Once
}

func NewRecorder(store *Store, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 1024
	}
	r := &Recorder{
		store:  store,
		events: make(chan signaling.RoomEvent, buffer),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

func (r *Recorder) RoomEvent(ev signaling.RoomEvent) {
	select {
	case r.events <- ev:
	default:
		r.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close flushes pending events. The hub must have stopped before Close.
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.events)
		r.wg.Wait()
		if n := r.dropped.Load(); n > 0 {
			slog.Warn("audit events dropped", "count", n)
		}
	})
}

func (r *Recorder) loop() {
	defer r.wg.Done()

	for ev := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := r.store.Insert(ctx, Entry{
			Kind:    string(ev.Kind),
			RoomID:  ev.RoomID,
			ConnID:  ev.ConnID,
			Members: ev.Members,
			At:      ev.At,
		})
		cancel()
		if err != nil {
			slog.Error("audit write failed", "room", ev.RoomID, "event", ev.Kind, "err", err)
		}
	}
}
