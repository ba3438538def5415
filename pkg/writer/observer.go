package writer

import "time"

// Observer receives registry events, e.g. to feed metrics.
type Observer interface {
	// ObserveAppend is called once per Append. status is "success" or the
	// error kind.
	ObserveAppend(status string, elapsed time.Duration, rows, bytes int64)
	// WriterOpened is called when a slot opens a new staged file.
	WriterOpened()
	// WriterClosed is called when a writer leaves its slot. reason is
	// "finalized", "finalize_failed" or "discarded".
	WriterClosed(reason string)
	// ObserveFlush is called after every FlushAll.
	ObserveFlush(elapsed time.Duration, finalized, failed int)
	// StreamDeleted is called when DeleteStream removed an entry.
	StreamDeleted()
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) ObserveAppend(string, time.Duration, int64, int64) {}
func (NopObserver) WriterOpened()                                     {}
func (NopObserver) WriterClosed(string)                               {}
func (NopObserver) ObserveFlush(time.Duration, int, int)              {}
func (NopObserver) StreamDeleted()                                    {}
