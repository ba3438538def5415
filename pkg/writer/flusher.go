package writer

import (
	"errors"
	"sync"
	"time"

	"github.com/dd0wney/cluso-logstage/pkg/logging"
)

// Flusher runs FlushAll on a fixed interval and on demand, and once more on
// Stop so no staged file is left without its footer.
type Flusher struct {
	registry *Registry
	interval time.Duration
	logger   logging.Logger

	flushChan chan struct{}
	stopChan  chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	stopErr   error
}

// NewFlusher returns a stopped flusher. interval must be positive.
func NewFlusher(registry *Registry, interval time.Duration, logger logging.Logger) (*Flusher, error) {
	if registry == nil {
		return nil, errors.New("writer: nil registry")
	}
	if interval <= 0 {
		return nil, errors.New("writer: flush interval must be positive")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Flusher{
		registry:  registry,
		interval:  interval,
		logger:    logger.With(logging.Component("flusher")),
		flushChan: make(chan struct{}, 1),
		stopChan:  make(chan struct{}),
	}, nil
}

// Start launches the worker goroutine. Later calls do nothing.
func (f *Flusher) Start() {
	f.startOnce.Do(func() {
		f.wg.Add(1)
		go f.flushWorker()
	})
}

// Trigger requests a flush without waiting for it. Requests made while one
// is pending are merged.
func (f *Flusher) Trigger() {
	select {
	case f.flushChan <- struct{}{}:
	default:
	}
}

// Stop ends the worker and runs a final FlushAll, returning its error.
// It is safe to call more than once.
func (f *Flusher) Stop() error {
	f.stopOnce.Do(func() {
		close(f.stopChan)
		f.wg.Wait()
		f.stopErr = f.registry.FlushAll()
		if f.stopErr != nil {
			f.logger.Error("final flush failed", logging.Error(f.stopErr))
		}
	})
	return f.stopErr
}

func (f *Flusher) flushWorker() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.flushChan:
			if err := f.registry.FlushAll(); err != nil {
				f.logger.Error("flush failed", logging.Error(err))
			}
		case <-ticker.C:
			if err := f.registry.FlushAll(); err != nil {
				f.logger.Error("periodic flush failed", logging.Error(err))
			}
		case <-f.stopChan:
			return
		}
	}
}
