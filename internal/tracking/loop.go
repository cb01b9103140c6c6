package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"schoolbus-backend/internal/geo"
	"schoolbus-backend/internal/models"

	log "github.com/sirupsen/logrus"
)

// Settings are the tunables of a tracking loop
type Settings struct {
	TickInterval        time.Duration `yaml:"tick_interval"`
	ArrivalRadiusMeters float64       `yaml:"arrival_radius_meters"`
	WatchMinDistance    float64       `yaml:"watch_min_distance_meters"`
	WatchMinInterval    time.Duration `yaml:"watch_min_interval"`
	OrientationInterval time.Duration `yaml:"orientation_interval"`
	BearingAnimation    time.Duration `yaml:"bearing_animation"`
	RouteRefresh        time.Duration `yaml:"route_refresh_interval"`
}

// DefaultSettings returns the stock cadence: 1s ticks, 50m arrival radius,
// 1m/1s location watch, 100ms magnetometer sampling.
func DefaultSettings() Settings {
	return Settings{
		TickInterval:        1 * time.Second,
		ArrivalRadiusMeters: 50,
		WatchMinDistance:    1,
		WatchMinInterval:    1 * time.Second,
		OrientationInterval: 100 * time.Millisecond,
		BearingAnimation:    400 * time.Millisecond,
		RouteRefresh:        30 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultSettings
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.TickInterval <= 0 {
		s.TickInterval = d.TickInterval
	}
	if s.ArrivalRadiusMeters <= 0 {
		s.ArrivalRadiusMeters = d.ArrivalRadiusMeters
	}
	if s.WatchMinDistance <= 0 {
		s.WatchMinDistance = d.WatchMinDistance
	}
	if s.WatchMinInterval <= 0 {
		s.WatchMinInterval = d.WatchMinInterval
	}
	if s.OrientationInterval <= 0 {
		s.OrientationInterval = d.OrientationInterval
	}
	if s.BearingAnimation <= 0 {
		s.BearingAnimation = d.BearingAnimation
	}
	if s.RouteRefresh <= 0 {
		s.RouteRefresh = d.RouteRefresh
	}
	return s
}

// Deps are the collaborators a Loop talks to. Routes and Observer are optional.
type Deps struct {
	Locations   LocationSource
	Orientation OrientationSource
	Store       RecordStore
	Prompter    Prompter
	Routes      RouteProvider
	Observer    Observer
}

// Snapshot is a read-only view of a loop for UI surfaces
type Snapshot struct {
	State               State                  `json:"state"`
	Trip                *models.TripContext    `json:"trip,omitempty"`
	Remaining           []models.PickupPoint   `json:"remaining_points"`
	PendingConfirmation bool                   `json:"pending_confirmation"`
	PendingPoint        *models.PickupPoint    `json:"pending_point,omitempty"`
	Bearing             float64                `json:"bearing"`
	LastPublished       *models.LocationRecord `json:"last_published,omitempty"`
}

// Loop publishes one driver's live location while a trip is running.
//
// Ticks run on a single goroutine, so a slow tick delays (and the ticker
// drops) the following ones instead of overlapping them.
type Loop struct {
	settings Settings
	deps     Deps
	now      func() time.Time

	mu             sync.Mutex
	state          State
	sess           *session
	bearing        float64
	locSub         Subscription
	orientListener Listener
	cancelTick     context.CancelFunc
	tickDone       chan struct{}
	routeHead      int
	lastRouteAt    time.Time

	samplesMu    sync.Mutex
	latestPos    *models.Position
	latestPosAt  time.Time
	latestSample models.OrientationSample
}

// NewLoop creates an idle loop
func NewLoop(settings Settings, deps Deps) *Loop {
	if deps.Prompter == nil {
		deps.Prompter = noopPrompter{}
	}
	return &Loop{
		settings: settings.withDefaults(),
		deps:     deps,
		now:      time.Now,
		state:    StateIdle,
	}
}

// State returns the current lifecycle state
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start begins tracking a trip. On any error the loop stays idle.
func (l *Loop) Start(ctx context.Context, trip models.TripContext, points []models.PickupPoint) error {
	l.mu.Lock()
	switch l.state {
	case StateTracking, StateStarting:
		l.mu.Unlock()
		return ErrAlreadyTracking
	case StateStopping:
		l.mu.Unlock()
		return ErrTeardownInProgress
	}
	if !trip.Complete() {
		l.mu.Unlock()
		return ErrIncompleteTrip
	}
	l.state = StateStarting
	l.mu.Unlock()

	if err := l.subscribe(ctx); err != nil {
		l.mu.Lock()
		l.state = StateIdle
		l.mu.Unlock()
		log.Printf("❌ Tracking not started for trip %s (bus %s): %v", trip.TripNumber, trip.BusID, err)
		return err
	}

	tickCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	l.mu.Lock()
	l.sess = newSession(trip, points)
	l.state = StateTracking
	l.cancelTick = cancel
	l.tickDone = done
	l.routeHead = -1
	l.lastRouteAt = time.Time{}
	l.mu.Unlock()

	go l.run(tickCtx, done)

	log.Printf("🚌 Tracking started: school %s, bus %s, trip %s (%d pickup points)",
		trip.SchoolID, trip.BusID, trip.TripNumber, len(points))

	if l.deps.Observer != nil {
		l.deps.Observer.TripStarted(trip)
	}
	return nil
}

// subscribe asks for permission and starts both sensor feeds. Whatever was
// started is undone if a later step fails.
func (l *Loop) subscribe(ctx context.Context) error {
	granted, err := l.deps.Locations.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("request location permission: %w", err)
	}
	if !granted {
		return ErrPermissionDenied
	}

	l.resetSamples()

	sub, err := l.deps.Locations.WatchPosition(WatchOptions{
		Accuracy:    AccuracyHigh,
		MinDistance: l.settings.WatchMinDistance,
		MinInterval: l.settings.WatchMinInterval,
	}, l.onPosition)
	if err != nil {
		return fmt.Errorf("watch position: %w", err)
	}

	if err := l.deps.Orientation.SetSampleInterval(l.settings.OrientationInterval); err != nil {
		_ = safeCall(sub.Cancel)
		return fmt.Errorf("set orientation interval: %w", err)
	}

	listener, err := l.deps.Orientation.Subscribe(l.onOrientation)
	if err != nil {
		_ = safeCall(sub.Cancel)
		return fmt.Errorf("subscribe orientation: %w", err)
	}

	l.mu.Lock()
	l.locSub = sub
	l.orientListener = listener
	l.mu.Unlock()
	return nil
}

// End stops the trip. All three teardown steps are attempted even when one
// fails, and End only returns once no tick is running any more.
func (l *Loop) End() error {
	l.mu.Lock()
	switch l.state {
	case StateIdle, StateStarting:
		l.mu.Unlock()
		return ErrNotTracking
	case StateStopping:
		l.mu.Unlock()
		return ErrTeardownInProgress
	}
	l.state = StateStopping
	sub, listener := l.locSub, l.orientListener
	cancel, done := l.cancelTick, l.tickDone
	trip := l.sess.trip
	l.mu.Unlock()

	var errs []error
	if sub != nil {
		if err := safeCall(sub.Cancel); err != nil {
			errs = append(errs, fmt.Errorf("cancel location watch: %w", err))
		}
	}
	if cancel != nil {
		cancel()
	}
	if listener != nil {
		if err := safeCall(listener.Remove); err != nil {
			errs = append(errs, fmt.Errorf("remove orientation listener: %w", err))
		}
	}
	if done != nil {
		<-done
	}

	l.mu.Lock()
	l.state = StateIdle
	l.sess = nil
	l.locSub = nil
	l.orientListener = nil
	l.cancelTick = nil
	l.tickDone = nil
	l.mu.Unlock()
	l.resetSamples()

	log.Printf("🛑 Tracking ended: school %s, bus %s, trip %s", trip.SchoolID, trip.BusID, trip.TripNumber)

	if l.deps.Observer != nil {
		l.deps.Observer.TripEnded(trip)
	}
	return errors.Join(errs...)
}

// ResolveConfirmation applies the driver's answer to the pending arrival
// prompt. A confirmed point is removed from the queue; the prompt is cleared
// either way.
func (l *Loop) ResolveConfirmation(confirmed bool) error {
	l.mu.Lock()
	if l.state != StateTracking || l.sess == nil {
		l.mu.Unlock()
		return ErrNotTracking
	}
	at, distance := l.sess.pendingPosition, l.sess.pendingDistance
	point, ok := l.sess.resolve(confirmed)
	trip := l.sess.trip
	remaining := len(l.sess.queue)
	l.mu.Unlock()

	if !ok {
		return ErrNoPendingConfirmation
	}

	if confirmed {
		log.Printf("✅ Pickup point %d confirmed (bus %s, %d remaining)", point.SequenceIndex, trip.BusID, remaining)
	} else {
		log.Printf("↩️  Pickup point %d not confirmed (bus %s)", point.SequenceIndex, trip.BusID)
	}

	if l.deps.Observer != nil {
		l.deps.Observer.PickupResolved(trip, point, confirmed, at, distance)
	}
	return nil
}

// Snapshot returns the current session view
func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{
		State:     l.state,
		Bearing:   l.bearing,
		Remaining: []models.PickupPoint{},
	}
	if l.sess == nil {
		return snap
	}
	trip := l.sess.trip
	snap.Trip = &trip
	snap.Remaining = l.sess.remaining()
	snap.PendingConfirmation = l.sess.pendingConfirmation
	if l.sess.pendingPoint != nil {
		p := *l.sess.pendingPoint
		snap.PendingPoint = &p
	}
	if l.sess.lastPublished != nil {
		r := *l.sess.lastPublished
		snap.LastPublished = &r
	}
	return snap
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(l.settings.TickInterval)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// tick is one pass of read location → heading → bearing → publish → proximity.
// Nothing that goes wrong in here stops the loop.
func (l *Loop) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Tracking tick panicked: %v", r)
			l.deps.Prompter.ShowError("Location tracking hit an unexpected error")
		}
	}()

	l.mu.Lock()
	if l.state != StateTracking || l.sess == nil {
		l.mu.Unlock()
		return
	}
	trip := l.sess.trip
	l.mu.Unlock()

	pos, err := l.currentPosition(ctx)
	if err != nil {
		l.report(ctx, "Could not read the current location", err)
		return
	}

	heading, ok := EstimateHeading(l.latestOrientation(), pos.Heading)
	if ok {
		l.updateBearing(heading)

		record := models.LocationRecord{
			Latitude:  pos.Latitude,
			Longitude: pos.Longitude,
			Accuracy:  pos.Accuracy,
			Heading:   heading,
			Timestamp: l.now().UnixMilli(),
		}
		if err := l.publish(ctx, trip, record); err != nil {
			l.report(ctx, "Could not publish the bus location", err)
		}
	} else {
		log.Debugf("🧭 No heading yet for bus %s, skipping publish", trip.BusID)
	}

	l.checkArrival(pos)
	l.refreshRoute(ctx, pos)
}

// currentPosition prefers the watched sample when it is at most one tick old
func (l *Loop) currentPosition(ctx context.Context) (models.Position, error) {
	l.samplesMu.Lock()
	latest, at := l.latestPos, l.latestPosAt
	l.samplesMu.Unlock()

	if latest != nil && l.now().Sub(at) <= l.settings.TickInterval {
		return *latest, nil
	}

	pos, err := l.deps.Locations.CurrentPosition(ctx, AccuracyHigh)
	if err != nil {
		return models.Position{}, fmt.Errorf("current position: %w", err)
	}
	l.onPosition(pos)
	return pos, nil
}

func (l *Loop) updateBearing(heading float64) {
	l.mu.Lock()
	from := l.bearing
	to := MarkerBearing(heading)
	l.bearing = to
	l.mu.Unlock()

	l.deps.Prompter.UpdateBearing(BearingUpdate{
		From:     from,
		To:       to,
		Duration: l.settings.BearingAnimation,
	})
}

// publish writes record unless the stored value already matches it
func (l *Loop) publish(ctx context.Context, trip models.TripContext, record models.LocationRecord) error {
	l.mu.Lock()
	if l.sess == nil || !l.sess.active || !trip.Complete() {
		l.mu.Unlock()
		return nil
	}
	last := l.sess.lastPublished
	l.mu.Unlock()

	if last != nil && last.SameLocation(record) {
		return nil
	}

	path := trip.LocationPath()
	remote, err := l.deps.Store.Read(ctx, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if remote != nil && remote.SameLocation(record) {
		l.setLastPublished(*remote)
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.deps.Store.Write(ctx, path, record); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	l.setLastPublished(record)

	if l.deps.Observer != nil {
		l.deps.Observer.LocationPublished(trip, record)
	}
	return nil
}

func (l *Loop) setLastPublished(record models.LocationRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sess != nil {
		l.sess.lastPublished = &record
	}
}

// checkArrival raises a confirmation prompt when the bus is within the
// arrival radius of the next pickup point
func (l *Loop) checkArrival(pos models.Position) {
	l.mu.Lock()
	if l.sess == nil || l.sess.pendingConfirmation {
		l.mu.Unlock()
		return
	}
	head, ok := l.sess.head()
	if !ok {
		l.mu.Unlock()
		return
	}
	distance := geo.HaversineMeters(
		geo.LatLng{Latitude: pos.Latitude, Longitude: pos.Longitude},
		geo.LatLng{Latitude: head.Latitude, Longitude: head.Longitude},
	)
	if distance > l.settings.ArrivalRadiusMeters {
		l.mu.Unlock()
		return
	}
	point, raised := l.sess.raise(pos, distance)
	l.mu.Unlock()

	if !raised {
		return
	}

	log.Printf("📍 Bus within %.0fm of pickup point %d - asking driver to confirm", distance, point.SequenceIndex)
	l.deps.Prompter.RequestConfirmation(ConfirmationRequest{
		Point:     point,
		DistanceM: distance,
		Message:   arrivalMessage(point, distance),
	})
}

// refreshRoute fetches directions to the queue head when the head changed or
// the last route is older than RouteRefresh
func (l *Loop) refreshRoute(ctx context.Context, pos models.Position) {
	if l.deps.Routes == nil {
		return
	}

	l.mu.Lock()
	if l.sess == nil {
		l.mu.Unlock()
		return
	}
	head, ok := l.sess.head()
	now := l.now()
	due := ok && (head.SequenceIndex != l.routeHead || now.Sub(l.lastRouteAt) >= l.settings.RouteRefresh)
	if due {
		l.routeHead = head.SequenceIndex
		l.lastRouteAt = now
	}
	l.mu.Unlock()

	if !due {
		return
	}

	route, err := l.deps.Routes.Route(ctx,
		geo.LatLng{Latitude: pos.Latitude, Longitude: pos.Longitude},
		geo.LatLng{Latitude: head.Latitude, Longitude: head.Longitude},
	)
	if err != nil {
		l.report(ctx, "Could not load directions to the next stop", err)
		return
	}
	l.deps.Prompter.ShowRoute(route)
}

// report logs a per-tick failure and shows it to the driver. Errors caused by
// the trip ending mid-tick are dropped.
func (l *Loop) report(ctx context.Context, message string, err error) {
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return
	}
	log.Printf("⚠️  %s: %v", message, err)
	l.deps.Prompter.ShowError(message)
}

func (l *Loop) onPosition(pos models.Position) {
	l.samplesMu.Lock()
	defer l.samplesMu.Unlock()
	l.latestPos = &pos
	l.latestPosAt = l.now()
}

func (l *Loop) onOrientation(sample models.OrientationSample) {
	l.samplesMu.Lock()
	defer l.samplesMu.Unlock()
	l.latestSample = sample
}

func (l *Loop) latestOrientation() models.OrientationSample {
	l.samplesMu.Lock()
	defer l.samplesMu.Unlock()
	return l.latestSample
}

func (l *Loop) resetSamples() {
	l.samplesMu.Lock()
	defer l.samplesMu.Unlock()
	l.latestPos = nil
	l.latestPosAt = time.Time{}
	l.latestSample = models.OrientationSample{}
}

func arrivalMessage(point models.PickupPoint, distance float64) string {
	name := point.Label
	if name == "" {
		name = fmt.Sprintf("pickup point %d", point.SequenceIndex)
	}
	return fmt.Sprintf("Have you arrived at %s? (%.0f m away)", name, distance)
}

// safeCall runs a teardown func, turning a panic into an error
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

type noopPrompter struct{}

func (noopPrompter) RequestConfirmation(ConfirmationRequest) {}
func (noopPrompter) ShowError(string)                        {}
func (noopPrompter) UpdateBearing(BearingUpdate)             {}
func (noopPrompter) ShowRoute(Route)                         {}
