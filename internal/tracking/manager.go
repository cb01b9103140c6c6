package tracking

import (
	"context"
	"sync"

	"schoolbus-backend/internal/models"

	log "github.com/sirupsen/logrus"
)

// Device is a connected driver phone: it provides both sensors and shows prompts
type Device interface {
	LocationSource
	OrientationSource
	Prompter
}

type managedLoop struct {
	loop   *Loop
	device Device
	// doomed is set when the device goes away (or the manager shuts down)
	// while the loop is still starting; Start then ends the loop itself.
	doomed bool
}

// Manager owns one Loop per driver
type Manager struct {
	settings Settings
	store    RecordStore
	routes   RouteProvider
	observer Observer

	mu    sync.Mutex
	loops map[string]*managedLoop
}

// NewManager creates a Manager. routes and observer may be nil.
func NewManager(settings Settings, store RecordStore, routes RouteProvider, observer Observer) *Manager {
	return &Manager{
		settings: settings,
		store:    store,
		routes:   routes,
		observer: observer,
		loops:    make(map[string]*managedLoop),
	}
}

// Start begins tracking trip using the driver's connected device
func (m *Manager) Start(ctx context.Context, trip models.TripContext, points []models.PickupPoint, device Device) error {
	m.mu.Lock()
	entry, ok := m.loops[trip.DriverID]
	if ok {
		switch entry.loop.State() {
		case StateTracking, StateStarting:
			m.mu.Unlock()
			return ErrAlreadyTracking
		case StateStopping:
			m.mu.Unlock()
			return ErrTeardownInProgress
		}
	}
	if !ok || entry.device != device {
		entry = &managedLoop{
			device: device,
			loop: NewLoop(m.settings, Deps{
				Locations:   device,
				Orientation: device,
				Store:       m.store,
				Prompter:    device,
				Routes:      m.routes,
				Observer:    m.observer,
			}),
		}
		m.loops[trip.DriverID] = entry
	}
	loop := entry.loop
	m.mu.Unlock()

	startErr := loop.Start(ctx, trip, points)

	m.mu.Lock()
	current, ok := m.loops[trip.DriverID]
	owned := ok && current == entry
	orphaned := !owned || entry.doomed
	if owned && entry.doomed {
		delete(m.loops, trip.DriverID)
	}
	m.mu.Unlock()

	if startErr != nil || !orphaned {
		return startErr
	}

	log.Printf("🔴 Device for driver %s went away while trip %s was starting - ending it", trip.DriverID, trip.TripNumber)
	if err := loop.End(); err != nil {
		log.Printf("⚠️  Trip teardown after aborted start reported: %v", err)
	}
	return ErrDeviceDisconnected
}

// End stops the driver's trip
func (m *Manager) End(driverID string) error {
	loop, ok := m.loop(driverID)
	if !ok {
		return ErrNotTracking
	}
	return loop.End()
}

// ResolveConfirmation forwards the driver's answer to the pending arrival prompt
func (m *Manager) ResolveConfirmation(driverID string, confirmed bool) error {
	loop, ok := m.loop(driverID)
	if !ok {
		return ErrNotTracking
	}
	return loop.ResolveConfirmation(confirmed)
}

// Snapshot returns the driver's loop state
func (m *Manager) Snapshot(driverID string) Snapshot {
	loop, ok := m.loop(driverID)
	if !ok {
		return Snapshot{State: StateIdle, Remaining: []models.PickupPoint{}}
	}
	return loop.Snapshot()
}

// ActiveSnapshots returns every loop that is not idle
func (m *Manager) ActiveSnapshots() []Snapshot {
	m.mu.Lock()
	loops := make([]*Loop, 0, len(m.loops))
	for _, entry := range m.loops {
		loops = append(loops, entry.loop)
	}
	m.mu.Unlock()

	snaps := make([]Snapshot, 0, len(loops))
	for _, loop := range loops {
		snap := loop.Snapshot()
		if snap.State != StateIdle {
			snaps = append(snaps, snap)
		}
	}
	return snaps
}

// DeviceDisconnected ends the driver's trip if it was fed by device
func (m *Manager) DeviceDisconnected(driverID string, device Device) {
	m.mu.Lock()
	entry, ok := m.loops[driverID]
	if !ok || entry.device != device {
		m.mu.Unlock()
		return
	}
	state := entry.loop.State()
	if state == StateStarting {
		// Start is still subscribing; it ends the loop once it returns
		entry.doomed = true
		m.mu.Unlock()
		log.Printf("🔴 Device for driver %s disconnected during trip start", driverID)
		return
	}
	delete(m.loops, driverID)
	m.mu.Unlock()

	if state != StateTracking {
		return
	}
	log.Printf("🔴 Device for driver %s disconnected - ending trip", driverID)
	if err := entry.loop.End(); err != nil {
		log.Printf("⚠️  Trip teardown after disconnect reported: %v", err)
	}
}

// Shutdown ends every running trip. Trips still starting are ended by
// their Start call.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	loops := make([]*Loop, 0, len(m.loops))
	for _, entry := range m.loops {
		entry.doomed = true
		loops = append(loops, entry.loop)
	}
	m.mu.Unlock()

	for _, loop := range loops {
		if loop.State() == StateTracking {
			if err := loop.End(); err != nil {
				log.Printf("⚠️  Trip teardown on shutdown reported: %v", err)
			}
		}
	}
}

func (m *Manager) loop(driverID string) (*Loop, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.loops[driverID]
	if !ok {
		return nil, false
	}
	return entry.loop, true
}
