package store

import (
	"context"
	"log"
	"sync"
	"time"
)

const writeTimeout = 5 * time.Second

// Recorder saves rounds on its own goroutine so the tick loop never waits
// on the database.
type Recorder struct {
	store    *Store
	rounds   chan Round
	recent   int
	onStored func([]Round)
	wg       sync.WaitGroup
}

// NewRecorder starts a recorder with room for queue pending rounds. After
// each successful write, onStored (if set) receives the latest recent rounds.
func NewRecorder(s *Store, queue, recent int, onStored func([]Round)) *Recorder {
	r := &Recorder{
		store:    s,
		rounds:   make(chan Round, queue),
		recent:   recent,
		onStored: onStored,
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for round := range r.rounds {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.store.RecordRound(ctx, round); err != nil {
			log.Printf("store: %v", err)
			cancel()
			continue
		}
		if r.onStored != nil {
			recent, err := r.store.RecentRounds(ctx, r.recent)
			if err != nil {
				log.Printf("store: %v", err)
			} else {
				r.onStored(recent)
			}
		}
		cancel()
	}
}

// Record queues a round without blocking. It reports false if the queue
// is full and the round was dropped.
func (r *Recorder) Record(round Round) bool {
	select {
	case r.rounds <- round:
		return true
	default:
		log.Printf("store: queue full, dropping round %s", round.ID)
		return false
	}
}

// Close stops accepting rounds and waits for queued ones to be written.
func (r *Recorder) Close() {
	close(r.rounds)
	r.wg.Wait()
}
