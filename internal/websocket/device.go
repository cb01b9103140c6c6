package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"schoolbus-backend/internal/models"
	"schoolbus-backend/internal/tracking"

	log "github.com/sirupsen/logrus"
)

// DefaultRequestTimeout bounds how long the server waits for the device to
// answer a permission or position request
const DefaultRequestTimeout = 15 * time.Second

var (
	ErrDeviceClosed   = errors.New("device disconnected")
	ErrRequestTimeout = errors.New("device did not answer in time")
	ErrSendFailed     = errors.New("device send buffer full")
	ErrUnknownMessage = errors.New("unknown message type")
)

// Sender delivers one server message to the device without blocking
type Sender func(msgType string, data interface{}) bool

// Device drives a connected driver phone: its GPS and magnetometer are
// reached through request/response and stream messages, and prompts are
// pushed to its UI.
type Device struct {
	driverID       string
	send           Sender
	requestTimeout time.Duration
	now            func() time.Time

	mu          sync.Mutex
	closed      bool
	done        chan struct{}
	nextID      uint64
	permissions map[string]chan bool
	positions   map[string]chan positionResponse
	watchers    map[string]*watcher
	orientation *orientationListener
}

type watcher struct {
	id     string
	filter *MovementFilter
	fn     func(models.Position)
}

// NewDevice creates a device that talks through send
func NewDevice(driverID string, send Sender) *Device {
	return &Device{
		driverID:       driverID,
		send:           send,
		requestTimeout: DefaultRequestTimeout,
		now:            time.Now,
		done:           make(chan struct{}),
		permissions:    make(map[string]chan bool),
		positions:      make(map[string]chan positionResponse),
		watchers:       make(map[string]*watcher),
	}
}

var _ tracking.Device = (*Device)(nil)

func (d *Device) newID() string {
	d.nextID++
	return strconv.FormatUint(d.nextID, 10)
}

// RequestPermission asks the driver to grant foreground location access
func (d *Device) RequestPermission(ctx context.Context) (bool, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false, ErrDeviceClosed
	}
	id := d.newID()
	ch := make(chan bool, 1)
	d.permissions[id] = ch
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.permissions, id)
		d.mu.Unlock()
	}()

	if !d.send(TypePermissionRequest, requestPayload{RequestID: id}) {
		return false, ErrSendFailed
	}

	select {
	case granted := <-ch:
		return granted, nil
	case <-d.done:
		return false, ErrDeviceClosed
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(d.requestTimeout):
		return false, ErrRequestTimeout
	}
}

// CurrentPosition asks the device for a one-shot GPS fix
func (d *Device) CurrentPosition(ctx context.Context, accuracy tracking.Accuracy) (models.Position, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return models.Position{}, ErrDeviceClosed
	}
	id := d.newID()
	ch := make(chan positionResponse, 1)
	d.positions[id] = ch
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.positions, id)
		d.mu.Unlock()
	}()

	if !d.send(TypePositionRequest, requestPayload{RequestID: id, Accuracy: accuracyName(accuracy)}) {
		return models.Position{}, ErrSendFailed
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return models.Position{}, fmt.Errorf("device location error: %s", resp.Error)
		}
		if resp.Position == nil {
			return models.Position{}, errors.New("device sent an empty position")
		}
		return *resp.Position, nil
	case <-d.done:
		return models.Position{}, ErrDeviceClosed
	case <-ctx.Done():
		return models.Position{}, ctx.Err()
	case <-time.After(d.requestTimeout):
		return models.Position{}, ErrRequestTimeout
	}
}

// WatchPosition starts the device's continuous location stream
func (d *Device) WatchPosition(opts tracking.WatchOptions, fn func(models.Position)) (tracking.Subscription, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDeviceClosed
	}
	w := &watcher{
		id:     d.newID(),
		filter: NewMovementFilter(opts.MinDistance, opts.MinInterval),
		fn:     fn,
	}
	d.watchers[w.id] = w
	d.mu.Unlock()

	ok := d.send(TypeWatchPosition, watchPayload{
		WatchID:       w.id,
		Accuracy:      accuracyName(opts.Accuracy),
		MinDistanceM:  opts.MinDistance,
		MinIntervalMs: opts.MinInterval.Milliseconds(),
	})
	if !ok {
		d.removeWatcher(w.id)
		return nil, ErrSendFailed
	}
	return &watchSubscription{device: d, id: w.id}, nil
}

// SetSampleInterval sets the magnetometer sampling interval
func (d *Device) SetSampleInterval(interval time.Duration) error {
	if d.isClosed() {
		return ErrDeviceClosed
	}
	if !d.send(TypeOrientationInterval, intervalPayload{IntervalMs: interval.Milliseconds()}) {
		return ErrSendFailed
	}
	return nil
}

// Subscribe registers the orientation callback. A new subscription replaces
// the previous one.
func (d *Device) Subscribe(fn func(models.OrientationSample)) (tracking.Listener, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}
	l := &orientationListener{device: d, fn: fn}
	d.orientation = l
	return l, nil
}

func (d *Device) RequestConfirmation(req tracking.ConfirmationRequest) {
	d.push(TypeConfirmArrivalPrompt, promptPayload{
		SequenceIndex: req.Point.SequenceIndex,
		Label:         req.Point.Label,
		Latitude:      req.Point.Latitude,
		Longitude:     req.Point.Longitude,
		DistanceM:     req.DistanceM,
		Message:       req.Message,
	})
}

func (d *Device) ShowError(message string) {
	d.push(TypeTrackingError, errorPayload{Message: message})
}

func (d *Device) UpdateBearing(update tracking.BearingUpdate) {
	d.push(TypeBearingUpdate, bearingPayload{
		From:       update.From,
		To:         update.To,
		DurationMs: update.Duration.Milliseconds(),
	})
}

func (d *Device) ShowRoute(route tracking.Route) {
	d.push(TypeRouteUpdate, route)
}

// push sends a UI message, dropping it if the device is gone or backed up
func (d *Device) push(msgType string, data interface{}) {
	if d.isClosed() {
		return
	}
	if !d.send(msgType, data) {
		log.Printf("⚠️  Dropped %s for driver %s (send buffer full)", msgType, d.driverID)
	}
}

// HandleMessage routes a sensor message from the device
func (d *Device) HandleMessage(msg IncomingMessage) error {
	switch msg.Type {
	case TypePermissionStatus:
		var status permissionStatus
		if err := json.Unmarshal(msg.Data, &status); err != nil {
			return fmt.Errorf("invalid %s: %w", msg.Type, err)
		}
		d.resolvePermission(status)

	case TypePositionResponse:
		var resp positionResponse
		if err := json.Unmarshal(msg.Data, &resp); err != nil {
			return fmt.Errorf("invalid %s: %w", msg.Type, err)
		}
		d.mu.Lock()
		ch, ok := d.positions[resp.RequestID]
		d.mu.Unlock()
		if ok {
			deliver(ch, resp)
		}

	case TypeLocationUpdate:
		var pos models.Position
		if err := json.Unmarshal(msg.Data, &pos); err != nil {
			return fmt.Errorf("invalid %s: %w", msg.Type, err)
		}
		now := d.now()
		for _, w := range d.activeWatchers() {
			if w.filter.Allow(pos, now) {
				w.fn(pos)
			}
		}

	case TypeOrientationUpdate:
		var sample models.OrientationSample
		if err := json.Unmarshal(msg.Data, &sample); err != nil {
			return fmt.Errorf("invalid %s: %w", msg.Type, err)
		}
		d.mu.Lock()
		l := d.orientation
		d.mu.Unlock()
		if l != nil {
			l.fn(sample)
		}

	default:
		return fmt.Errorf("%w: %s", ErrUnknownMessage, msg.Type)
	}
	return nil
}

// resolvePermission answers the matching request, or every pending one when
// the device did not echo a request id
func (d *Device) resolvePermission(status permissionStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if status.RequestID != "" {
		if ch, ok := d.permissions[status.RequestID]; ok {
			deliver(ch, status.Granted)
		}
		return
	}
	for _, ch := range d.permissions {
		deliver(ch, status.Granted)
	}
}

// Close aborts pending requests and drops every callback
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.done)
	d.watchers = make(map[string]*watcher)
	d.orientation = nil
}

// WatchStats returns the filter counters of every active watch
func (d *Device) WatchStats() map[string]FilterStats {
	stats := make(map[string]FilterStats)
	for _, w := range d.activeWatchers() {
		stats[w.id] = w.filter.Stats()
	}
	return stats
}

func (d *Device) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Device) activeWatchers() []*watcher {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*watcher, 0, len(d.watchers))
	for _, w := range d.watchers {
		out = append(out, w)
	}
	return out
}

func (d *Device) removeWatcher(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.watchers[id]
	delete(d.watchers, id)
	return ok
}

type watchSubscription struct {
	device *Device
	id     string
}

// Cancel stops the watch. Cancelling on a disconnected device is a no-op.
func (s *watchSubscription) Cancel() error {
	if !s.device.removeWatcher(s.id) || s.device.isClosed() {
		return nil
	}
	if !s.device.send(TypeStopWatch, map[string]string{"watch_id": s.id}) {
		return ErrSendFailed
	}
	return nil
}

type orientationListener struct {
	device *Device
	fn     func(models.OrientationSample)
}

// Remove detaches the listener and stops the device's sampling
func (l *orientationListener) Remove() error {
	d := l.device
	d.mu.Lock()
	if d.orientation == l {
		d.orientation = nil
	}
	closed := d.closed
	d.mu.Unlock()

	if closed {
		return nil
	}
	if !d.send(TypeStopOrientation, nil) {
		return ErrSendFailed
	}
	return nil
}

func deliver[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func accuracyName(a tracking.Accuracy) string {
	if a == tracking.AccuracyHigh {
		return "high"
	}
	return "balanced"
}
