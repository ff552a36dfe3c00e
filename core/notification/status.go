package notification

import (
	"sync"
	"time"
)

// Status is the user-visible connection indicator.
type Status string

const (
	StatusConnected  Status = "connected"
	StatusConnecting Status = "connecting"
)

// StatusDebouncer keeps the indicator from flickering on rapid transport
// flips: "connected" is shown only after the channel has stayed non-loading
// continuously for connectedDelta, "connecting" only after it has stayed
// loading for connectingDelta. Until a transition sticks, the previously
// shown status remains.
type StatusDebouncer struct {
	mu sync.Mutex

	loading bool
	since   time.Time
	shown   Status

	connectedDelta  time.Duration
	connectingDelta time.Duration
}

func NewStatusDebouncer(connectedDelta, connectingDelta time.Duration) *StatusDebouncer {
	return &StatusDebouncer{
		loading:         true,
		shown:           StatusConnecting,
		connectedDelta:  connectedDelta,
		connectingDelta: connectingDelta,
	}
}

// SetLoading records a transport loading flip; repeated identical values do
// not reset the stability clock.
func (d *StatusDebouncer) SetLoading(loading bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if loading == d.loading {
		return
	}
	d.loading = loading
	d.since = nowFunc()
}

// Current returns the debounced status.
func (d *StatusDebouncer) Current() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := nowFunc().Sub(d.since)
	if d.loading {
		if elapsed >= d.connectingDelta {
			d.shown = StatusConnecting
		}
	} else {
		if elapsed >= d.connectedDelta {
			d.shown = StatusConnected
		}
	}
	return d.shown
}
