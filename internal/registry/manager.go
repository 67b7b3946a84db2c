package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/tuya-fusion-core/internal/merge"
	"github.com/nerrad567/tuya-fusion-core/internal/normalize"
	"github.com/nerrad567/tuya-fusion-core/internal/point"
	"github.com/nerrad567/tuya-fusion-core/internal/reconcile"
	"github.com/nerrad567/tuya-fusion-core/internal/tuya"
)

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Listener receives change notifications: one call per committed
// batch, with the codes the batch touched. Called synchronously;
// implementations must not block.
type Listener func(deviceID string, codes []string)

// Manager is the process-wide device aggregator.
//
// All public methods are thread-safe.
type Manager struct {
	engine     *merge.Engine
	normalizer *normalize.Normalizer
	handler    *reconcile.Handler
	logger     Logger

	mu       sync.RWMutex
	sources  map[string]Source
	devices  map[string]*point.Device
	commitMu map[string]*sync.Mutex

	listenerMu sync.RWMutex
	listeners  map[string]Listener

	virtualFns map[string]map[string]VirtualFunc
}

// NewManager creates a manager over a merge engine and a reconcile
// handler. The default virtual functions are pre-registered.
func NewManager(engine *merge.Engine, handler *reconcile.Handler) *Manager {
	m := &Manager{
		engine:     engine,
		normalizer: normalize.New(),
		handler:    handler,
		logger:     noopLogger{},
		sources:    make(map[string]Source),
		devices:    make(map[string]*point.Device),
		commitMu:   make(map[string]*sync.Mutex),
		listeners:  make(map[string]Listener),
		virtualFns: make(map[string]map[string]VirtualFunc),
	}
	registerDefaultVirtualFunctions(m)
	return m
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// RegisterSource adds a source account.
func (m *Manager) RegisterSource(s Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[s.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrSourceExists, s.Name())
	}
	m.sources[s.Name()] = s
	m.logger.Info("source registered", "source", s.Name(), "openapi", s.OpenAPI())
	return nil
}

// RegisterDevice feeds one source snapshot into the canonical map.
// The first snapshot for an id is normalized and stored; later
// snapshots for the same id are merged into the stored device, which
// afterwards shares containers with the newcomer.
func (m *Manager) RegisterDevice(source string, dev *point.Device) *point.Device {
	if dev == nil {
		return nil
	}
	dev.EnsureContainers()

	lock := m.commitLock(dev.ID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	existing := m.devices[dev.ID]
	m.mu.Unlock()

	var merged *point.Device
	if existing == nil {
		m.normalizer.Apply(dev)
		merged = dev
		m.logger.Info("device registered",
			"device", dev.ID, "name", dev.Name, "source", source)
	} else {
		merged = m.engine.Merge(existing, dev)
		m.logger.Debug("device snapshot merged",
			"device", dev.ID, "source", source)
	}

	m.mu.Lock()
	m.devices[merged.ID] = merged
	m.mu.Unlock()
	return merged
}

// RegisterAll feeds every device of a snapshot batch.
func (m *Manager) RegisterAll(source string, devices []*point.Device) {
	for _, d := range devices {
		m.RegisterDevice(source, d)
	}
}

// Device returns the live merged device for an id. The containers are
// mutated in place by the commit path, so only code holding the
// device's commit lock may read them; everything else goes through
// Snapshot.
func (m *Manager) Device(id string) (*point.Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	return d, ok
}

// DeviceMap returns a copy of the canonical map holding the live
// merged objects. The same locking caveat as Device applies to the
// container fields.
func (m *Manager) DeviceMap() map[string]*point.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*point.Device, len(m.devices))
	for id, d := range m.devices {
		out[id] = d
	}
	return out
}

// Snapshot returns a deep copy of the merged device, taken under its
// commit lock. The copy is safe to read and serialise concurrently
// with live commits.
func (m *Manager) Snapshot(id string) (*point.Device, bool) {
	dev, ok := m.Device(id)
	if !ok {
		return nil, false
	}
	lock := m.commitLock(id)
	lock.Lock()
	defer lock.Unlock()
	return dev.Clone(), true
}

// SnapshotMap returns deep copies of every merged device, each taken
// under its own commit lock.
func (m *Manager) SnapshotMap() map[string]*point.Device {
	out := make(map[string]*point.Device)
	for id := range m.DeviceMap() {
		if dev, ok := m.Snapshot(id); ok {
			out[id] = dev
		}
	}
	return out
}

// RemoveDevice drops a device and its arbitration state.
func (m *Manager) RemoveDevice(id string) {
	m.mu.Lock()
	delete(m.devices, id)
	delete(m.commitMu, id)
	m.mu.Unlock()
	m.handler.Arbiter().Forget(id)
	m.logger.Info("device removed", "device", id)
}

// AddListener registers a change listener and returns its id.
func (m *Manager) AddListener(fn Listener) string {
	id := uuid.NewString()
	m.listenerMu.Lock()
	m.listeners[id] = fn
	m.listenerMu.Unlock()
	return id
}

// RemoveListener drops a listener by id.
func (m *Manager) RemoveListener(id string) {
	m.listenerMu.Lock()
	delete(m.listeners, id)
	m.listenerMu.Unlock()
}

// OnMessage handles one raw push payload from a source's channel.
// Undecodable payloads and reports for unknown devices are dropped
// with a log line.
func (m *Manager) OnMessage(source string, raw []byte) {
	msg, err := tuya.DecodePush(raw)
	if err != nil {
		m.logger.Warn("push payload dropped", "source", source, "error", err)
		return
	}

	switch msg.Protocol {
	case tuya.ProtocolReport:
		m.handleReport(source, msg)
	case tuya.ProtocolOther:
		m.handleBiz(source, msg)
	default:
		m.logger.Debug("push protocol ignored",
			"source", source, "protocol", msg.Protocol, "device", msg.DeviceID)
	}
}

// handleReport commits a status report: filter, virtual states, then
// in-place container writes, under the device's commit lock.
func (m *Manager) handleReport(source string, msg *tuya.PushMessage) {
	dev, ok := m.Device(msg.DeviceID)
	if !ok {
		m.logger.Debug("status report for unknown device",
			"source", source, "device", msg.DeviceID)
		return
	}

	batch := make([]point.StatusUpdate, len(msg.Status))
	for i, s := range msg.Status {
		batch[i] = point.StatusUpdate{Code: s.Code, Value: s.Value, DPID: s.DPID}
	}

	lock := m.commitLock(dev.ID)
	lock.Lock()
	committed := m.handler.Process(dev, source, batch)
	for _, u := range committed {
		dev.Status[u.Code] = u.Value
	}
	lock.Unlock()

	if len(committed) == 0 {
		return
	}
	codes := point.Codes(committed)
	m.logger.Debug("status committed",
		"device", dev.ID, "source", source, "codes", codes)
	m.notify(dev.ID, codes)
}

// handleBiz handles the protocol-20 family: lifecycle and rename
// events.
func (m *Manager) handleBiz(source string, msg *tuya.PushMessage) {
	dev, ok := m.Device(msg.DeviceID)

	switch msg.BizCode {
	case "delete", "unbind":
		if ok {
			m.RemoveDevice(dev.ID)
		}
	case "bind":
		if ok {
			return
		}
		m.mu.RLock()
		src := m.sources[source]
		m.mu.RUnlock()
		if src == nil {
			m.logger.Warn("bind event from unregistered source",
				"source", source, "device", msg.DeviceID)
			return
		}
		// The fetch is a network round trip; do it off the push
		// handler's goroutine.
		go m.registerBound(src, source, msg.DeviceID)
	case "online", "offline":
		if !ok {
			return
		}
		lock := m.commitLock(dev.ID)
		lock.Lock()
		dev.Online = msg.BizCode == "online"
		lock.Unlock()
		m.notify(dev.ID, nil)
	case "nameUpdate":
		if !ok || msg.BizName == "" {
			return
		}
		lock := m.commitLock(dev.ID)
		lock.Lock()
		dev.Name = msg.BizName
		lock.Unlock()
		m.notify(dev.ID, nil)
	default:
		m.logger.Debug("biz event ignored",
			"source", source, "device", msg.DeviceID, "biz_code", msg.BizCode)
	}
}

// bindFetchTimeout bounds the cloud fetch for a freshly paired device.
const bindFetchTimeout = 30 * time.Second

// registerBound fetches a newly paired device from its source and
// feeds it through the merge pipeline, so pairing takes effect without
// waiting for the next periodic refresh.
func (m *Manager) registerBound(src Source, source, deviceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), bindFetchTimeout)
	defer cancel()

	dev, err := src.FetchDevice(ctx, deviceID)
	if err != nil {
		m.logger.Warn("bound device fetch failed",
			"source", source, "device", deviceID, "error", err)
		return
	}
	m.RegisterDevice(source, dev)
	m.notify(deviceID, nil)
}

// SendCommand routes an outbound command batch. Per entry: a virtual
// function registered for the device's category is handled locally;
// otherwise the point's local strategy decides which source carries
// the write and whether it is a plain command or a property update.
// Entries nothing can carry are dropped with a warning. Exactly one
// network call is issued per routable entry group.
func (m *Manager) SendCommand(ctx context.Context, deviceID string, commands []Command) error {
	live, ok := m.Device(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	// Routing decisions read the strategy tables, which live commits
	// mutate; route off a snapshot. Virtual functions get the live
	// device and take the commit lock themselves.
	dev, ok := m.Snapshot(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}

	plain := make(map[string][]Command)
	properties := make(map[string]map[string]any)
	carriers := make(map[string]Source)

	for _, cmd := range commands {
		if fn := m.virtualFunction(dev.Category, cmd.Code); fn != nil {
			if err := fn(ctx, m, live, cmd.Value); err != nil {
				m.logger.Warn("virtual function failed",
					"device", deviceID, "code", cmd.Code, "error", err)
			}
			continue
		}

		entry, found := dev.StrategyByCode(cmd.Code)
		if !found {
			m.logger.Warn("command dropped: no routing metadata",
				"device", deviceID, "code", cmd.Code)
			continue
		}
		src := m.routeSource(dev, cmd.Code)
		if src == nil {
			m.logger.Warn("command dropped: no source",
				"device", deviceID, "code", cmd.Code)
			continue
		}

		carriers[src.Name()] = src
		if entry.PropertyUpdate {
			if properties[src.Name()] == nil {
				properties[src.Name()] = make(map[string]any)
			}
			properties[src.Name()][cmd.Code] = cmd.Value
		} else {
			plain[src.Name()] = append(plain[src.Name()], cmd)
		}
	}

	for name, batch := range plain {
		if err := carriers[name].SendCommands(ctx, deviceID, batch); err != nil {
			return fmt.Errorf("sending commands via %s: %w", name, err)
		}
	}
	for name, props := range properties {
		if err := carriers[name].SendPropertyUpdate(ctx, deviceID, props); err != nil {
			return fmt.Errorf("updating properties via %s: %w", name, err)
		}
	}
	return nil
}

// routeSource picks the source account for a write on one code: the
// strategy's OpenAPI flag selects the flavour, falling back to any
// source that knows the device. Local-protocol writes are out of
// scope and fall back to the cloud path.
func (m *Manager) routeSource(dev *point.Device, code string) Source {
	wantOpenAPI := false
	if entry, ok := dev.StrategyByCode(code); ok {
		wantOpenAPI = entry.UseOpenAPI
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var fallback Source
	for _, s := range m.sources {
		if _, knows := s.Devices()[dev.ID]; !knows {
			continue
		}
		if s.OpenAPI() == wantOpenAPI {
			return s
		}
		fallback = s
	}
	if fallback != nil {
		m.logger.Debug("preferred source flavour unavailable, falling back",
			"device", dev.ID, "code", code, "want_openapi", wantOpenAPI,
			"using", fallback.Name())
	}
	return fallback
}

// commitLock returns the per-device commit mutex, creating it on
// first use.
func (m *Manager) commitLock(deviceID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.commitMu[deviceID]
	if !ok {
		lock = &sync.Mutex{}
		m.commitMu[deviceID] = lock
	}
	return lock
}

// notify fans a change out to every listener.
func (m *Manager) notify(deviceID string, codes []string) {
	m.listenerMu.RLock()
	defer m.listenerMu.RUnlock()
	for _, fn := range m.listeners {
		fn(deviceID, codes)
	}
}

