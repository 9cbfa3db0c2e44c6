package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"pcbtrack-api/domain"
)

// Board events are advisory notifications, so publishing happens off the
// request path through a small worker pool. When the buffer is saturated
// the handler falls back to publishing inline.

var (
	once           sync.Once
	jobs           chan domain.BoardEvent
	workerCount    int
	jobBuf         int
	publishTimeout time.Duration
	handoffTimeout time.Duration
	bg             = context.Background()
	globalPub      Publisher
	globalLog      *log.Logger
	workerWG       sync.WaitGroup
)

// shutdownEventPublisher stops worker goroutines and clears shared state.
// It is intended for tests.
func shutdownEventPublisher() {
	if jobs != nil {
		close(jobs)
		jobs = nil
	}

	workerWG.Wait()

	globalPub = nil
	globalLog = nil
	workerCount = 0
	jobBuf = 0
	publishTimeout = 0
	handoffTimeout = 0
	once = sync.Once{}
	workerWG = sync.WaitGroup{}
}

func initEventPublisher(pub Publisher, logger *log.Logger) {
	once.Do(func() {
		globalPub = pub
		if logger == nil {
			panic("Logger is not initialized")
		}
		globalLog = logger

		workerCount = envInt("PUBLISH_WORKERS", 8)
		jobBuf = envInt("PUBLISH_BUFFER", 1024)
		publishTimeout = envDur("PUBLISH_TIMEOUT", 30*time.Second)
		handoffTimeout = envDur("PUBLISH_HANDOFF_TIMEOUT", 10*time.Millisecond)

		jobs = make(chan domain.BoardEvent, jobBuf)
		for i := 0; i < workerCount; i++ {
			workerWG.Add(1)
			go publishWorker(i, jobs)
		}
		globalLog.Infof("event publisher started, workers: %d, buffer: %d, timeout: %v, handoff: %v", workerCount, jobBuf, publishTimeout, handoffTimeout)
	})
}

func publishWorker(id int, jobCh <-chan domain.BoardEvent) {
	defer workerWG.Done()
	for ev := range jobCh {
		ctx, cancel := context.WithTimeout(bg, publishTimeout)
		err := globalPub.PublishBoardEvent(ctx, ev)
		cancel()

		if err != nil {
			globalLog.Errorf("publish failed, err: %v, board: %s, type: %s, worker: %d", err, ev.BoardID, ev.Type, id)
		}
	}
}

func tryPublishEvent(ev domain.BoardEvent) bool {
	if jobs == nil {
		return false
	}

	if ok, closed := trySendNonBlocking(jobs, ev); closed {
		return false
	} else if ok {
		return true
	}

	if handoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(handoffTimeout)
	defer timer.Stop()

	ok, closed := sendWithTimer(jobs, ev, timer.C)
	if closed {
		return false
	}
	return ok
}

func trySendNonBlocking(ch chan domain.BoardEvent, ev domain.BoardEvent) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- ev:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan domain.BoardEvent, ev domain.BoardEvent, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- ev:
		return true, false
	case <-timer:
		return false, false
	}
}

// publishBoardEvent hands the event to the worker pool, publishing inline
// as a fallback so no event is silently dropped.
func publishBoardEvent(eventType, boardID string) {
	ev := domain.BoardEvent{
		Type:      eventType,
		BoardID:   boardID,
		Timestamp: nextEventTimestamp(),
	}
	if tryPublishEvent(ev) {
		return
	}

	if globalPub == nil {
		return
	}
	if globalLog != nil {
		globalLog.Warn("publish buffer saturated; publishing inline")
	}
	ctx, cancel := context.WithTimeout(bg, inlinePublishTimeout())
	defer cancel()
	if err := globalPub.PublishBoardEvent(ctx, ev); err != nil && globalLog != nil {
		globalLog.Errorf("publish inline failed: %v, board: %s, type: %s", err, ev.BoardID, ev.Type)
	}
}

func inlinePublishTimeout() time.Duration {
	if publishTimeout > 0 {
		return publishTimeout
	}
	return 30 * time.Second
}
