// Package notification maintains near-real-time visibility into the events
// relevant to the signed-in principal. Two independent producers feed one
// in-memory collection keyed by notification id: a throttled baseline fetch
// and a push subscription; every writer performs a narrow idempotent merge
// (replace-all, prepend-if-new or upsert-by-id) so arrival order never
// matters.
package notification

import (
	"context"
	"encoding/json"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cmrsapp/console/core"
)

// State is the channel's connection lifecycle position.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateSubscribed
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	ErrClosed = errors.New("notification channel closed")

	// student identifiers start with a letter (U119713); numeric ones are
	// generic user ids. The shape routes the baseline fetch to the right
	// backend lookup.
	studentIdentRegex = regexp.MustCompile(`^[A-Za-z]`)

	nowFunc = time.Now // mockable
)

// API is the notification service boundary used for the baseline fetch and
// the mark-read operations.
type API interface {
	StudentNotifications(ctx context.Context, identifier string) ([]Notification, error)
	UserNotifications(ctx context.Context, identifier string) ([]Notification, error)
	MarkRead(ctx context.Context, id int64) (Notification, error)
	MarkManyRead(ctx context.Context, ids []int64) ([]Notification, error)
}

// Transport is the persistent push connection. Subscribe starts the
// connection loop for the identifier's topic and returns; onMessage receives
// each raw payload, up reports connectivity flips (reconnects included).
// Close must release the underlying resource deterministically.
type Transport interface {
	Subscribe(identifier string, onMessage func(payload []byte), up func(connected bool)) error
	Close() error
}

// Channel is the per-session notification singleton. Exactly one logical
// channel exists per identifier at a time; the constructor-and-Close
// lifecycle (owned by the session wiring) enforces it.
type Channel struct {
	api       API
	transport Transport
	logger    core.Logger

	throttle   time.Duration
	refreshMin time.Duration
	status     *StatusDebouncer

	// onAPIError lets the session store apply its implicit-logout rule on
	// 401-class failures; never used for anything else.
	onAPIError func(error)

	mu            sync.Mutex
	state         State
	identifier    string
	notifs        []Notification
	alerts        []Alert
	lastFetch     time.Time
	fetchInFlight bool
	lastErr       error
}

func NewChannel(api API, transport Transport, logger core.Logger, conf *core.Config) *Channel {
	return &Channel{
		api:        api,
		transport:  transport,
		logger:     logger,
		throttle:   conf.Notification.FetchThrottleDelta,
		refreshMin: conf.Notification.RefreshMinDelta,
		status:     NewStatusDebouncer(conf.Notification.ConnectedShowDelta, conf.Notification.ConnectingShowDelta),
	}
}

// OnAPIError registers the hook invoked with every downstream failure.
func (c *Channel) OnAPIError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAPIError = fn
}

// Connect establishes the push subscription for the identifier and kicks off
// the baseline fetch. Idempotent: a second call while a connection attempt
// is in flight or a subscription is active is a no-op.
func (c *Channel) Connect(identifier string) error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateSubscribed, StateReconnecting:
		c.mu.Unlock()
		c.logger.Debug("notification channel already connected, skipping")
		return nil
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	}
	c.state = StateConnecting
	c.identifier = identifier
	c.status.SetLoading(true)
	c.mu.Unlock()

	// the baseline fetch and the push handshake are independent races;
	// dedup by id makes arrival order irrelevant
	go c.LoadExisting(context.Background(), identifier)

	if err := c.transport.Subscribe(identifier, c.handleMessage, c.handleTransportUp); err != nil {
		err = errors.Wrap(err, "subscribing to push topic")
		c.mu.Lock()
		c.recordErr(err)
		c.mu.Unlock()
		return err
	}
	return nil
}

// LoadExisting performs the throttled baseline read of the principal's
// notifications. If a fetch is already in flight, or the last completed one
// is more recent than the throttle window, it does nothing; the very first
// fetch always proceeds. On failure the existing collection is kept,
// stale-but-present beats empty.
func (c *Channel) LoadExisting(ctx context.Context, identifier string) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	if c.fetchInFlight {
		c.mu.Unlock()
		c.logger.Debug("notification fetch already in progress, skipping")
		return
	}
	now := nowFunc()
	if !c.lastFetch.IsZero() && now.Sub(c.lastFetch) < c.throttle {
		c.mu.Unlock()
		c.logger.Debug("throttling notification fetch")
		return
	}
	c.fetchInFlight = true
	c.mu.Unlock()

	var notifs []Notification
	var err error
	if studentIdentRegex.MatchString(identifier) {
		notifs, err = c.api.StudentNotifications(ctx, identifier)
	} else {
		notifs, err = c.api.UserNotifications(ctx, identifier)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchInFlight = false
	if err != nil {
		c.recordErr(errors.Wrap(err, "fetching notifications"))
		return
	}
	c.notifs = notifs
	c.lastFetch = now
	c.lastErr = nil
}

// Refresh is the user-initiated reload: rapid repeats are ignored, then the
// regular baseline throttle still applies.
func (c *Channel) Refresh(ctx context.Context) {
	c.mu.Lock()
	identifier := c.identifier
	if !c.lastFetch.IsZero() && nowFunc().Sub(c.lastFetch) < c.refreshMin {
		c.mu.Unlock()
		c.logger.Debug("ignoring rapid refresh request")
		return
	}
	c.mu.Unlock()
	if identifier != "" {
		c.LoadExisting(ctx, identifier)
	}
}

// MarkOne marks a single notification read. The updated ReadAt comes from
// the server's authoritative response, never guessed locally. Invalid ids
// are rejected without a network call.
func (c *Channel) MarkOne(ctx context.Context, id int64) error {
	if id <= 0 {
		c.logger.Warn("invalid notification id, ignoring mark-read")
		return nil
	}

	updated, err := c.api.MarkRead(ctx, id)
	if err != nil {
		err = errors.Wrap(err, "marking notification read")
		c.mu.Lock()
		c.recordErr(err)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.notifs {
		if c.notifs[i].NotificationID == id {
			c.notifs[i].ReadAt = updated.ReadAt
		}
	}
	return nil
}

// MarkAllUnread marks every currently-unread notification read in one batch
// call, then merges the server's updated records back by id; records the
// server did not return are left untouched.
func (c *Channel) MarkAllUnread(ctx context.Context) error {
	c.mu.Lock()
	var ids []int64
	for _, n := range c.notifs {
		if !n.Read() {
			ids = append(ids, n.NotificationID)
		}
	}
	c.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}

	updated, err := c.api.MarkManyRead(ctx, ids)
	if err != nil {
		err = errors.Wrap(err, "marking notifications read")
		c.mu.Lock()
		c.recordErr(err)
		c.mu.Unlock()
		return err
	}

	byID := make(map[int64]Notification, len(updated))
	for _, n := range updated {
		byID[n.NotificationID] = n
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.notifs {
		if n, ok := byID[c.notifs[i].NotificationID]; ok {
			c.notifs[i] = n
		}
	}
	return nil
}

// Notifications returns a copy of the collection, most recent first.
func (c *Channel) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	notifs := make([]Notification, len(c.notifs))
	copy(notifs, c.notifs)
	return notifs
}

// UnreadCount is recomputed from the collection on every call, never stored.
func (c *Channel) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var count int
	for _, n := range c.notifs {
		if !n.Read() {
			count++
		}
	}
	return count
}

// Alerts drains and returns the pending toast alerts.
func (c *Channel) Alerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	alerts := c.alerts
	c.alerts = nil
	return alerts
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status is the debounced connection indicator shown to the user.
func (c *Channel) Status() Status {
	return c.status.Current()
}

// Err returns the last recorded downstream failure, nil after a successful
// fetch.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close tears the channel down and releases the push transport. The channel
// cannot be reused afterwards; a new login constructs a new one.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	c.mu.Unlock()
	return errors.Wrap(c.transport.Close(), "closing push transport")
}

// handleMessage processes one raw push payload. Malformed payloads are
// logged and dropped; duplicates (by id) are discarded silently.
func (c *Channel) handleMessage(payload []byte) {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		c.logger.Warn("malformed push payload, discarding", err)
		return
	}
	if n.NotificationID == 0 {
		c.logger.Warn("push payload missing notification id, discarding")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	for _, existing := range c.notifs {
		if existing.NotificationID == n.NotificationID {
			c.logger.Debug("duplicate push delivery, skipping")
			return
		}
	}
	c.notifs = append([]Notification{n}, c.notifs...)

	title := "New notification"
	if n.EventType != "" {
		title = "New notification: " + string(n.EventType)
	}
	c.alerts = append(c.alerts, Alert{
		ID:    uuid.NewString(),
		Title: title,
		Body:  n.Message(),
		At:    nowFunc(),
	})
}

func (c *Channel) handleTransportUp(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	if connected {
		c.state = StateSubscribed
		c.status.SetLoading(false)
	} else {
		c.state = StateReconnecting
		c.status.SetLoading(true)
	}
}

// recordErr stores the failure and forwards it to the session hook; callers
// must hold c.mu.
func (c *Channel) recordErr(err error) {
	c.lastErr = err
	c.logger.Error("notification channel error", err)
	if c.onAPIError != nil {
		go c.onAPIError(err)
	}
}
