package navigation

import "time"

// Observer receives navigation events, typically for metrics.
type Observer interface {
	PageSelected(key string)
	PageNotFound(key string)
	ContentLoaded(key string, err error, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) PageSelected(string) {}
func (nopObserver) PageNotFound(string) {}
func (nopObserver) ContentLoaded(string, error, time.Duration) {}
