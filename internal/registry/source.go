package registry

import (
	"context"
	"sync"

	"github.com/nerrad567/tuya-fusion-core/internal/point"
	"github.com/nerrad567/tuya-fusion-core/internal/tuya"
)

// Command is one outbound code/value write.
type Command struct {
	Code  string `json:"code"`
	Value any    `json:"value"`
}

// Source is one cloud account the manager aggregates. Implementations
// must be safe for concurrent use.
type Source interface {
	// Name identifies the source in logs, merge records, and
	// arbitration counters.
	Name() string

	// OpenAPI reports whether this account is the IoT-platform
	// flavour. Command routing uses it to honour a point's
	// use-OpenAPI strategy flag.
	OpenAPI() bool

	// Devices returns the source's own id-to-device map from its
	// last refresh. The returned map must not be mutated.
	Devices() map[string]*point.Device

	// FetchDevice fetches one device fresh from the cloud, for
	// devices paired after the last full refresh.
	FetchDevice(ctx context.Context, deviceID string) (*point.Device, error)

	// SendCommands issues a plain command batch to one device.
	SendCommands(ctx context.Context, deviceID string, commands []Command) error

	// SendPropertyUpdate issues a shadow-property write to one
	// device.
	SendPropertyUpdate(ctx context.Context, deviceID string, properties map[string]any) error
}

// CloudSource adapts a tuya.Client into a Source, caching the device
// snapshots from its last Refresh.
type CloudSource struct {
	client  *tuya.Client
	openAPI bool

	mu      sync.RWMutex
	devices map[string]*point.Device
}

// NewCloudSource wraps a client. openAPI marks the IoT-platform
// flavour for command routing.
func NewCloudSource(client *tuya.Client, openAPI bool) *CloudSource {
	return &CloudSource{
		client:  client,
		openAPI: openAPI,
		devices: make(map[string]*point.Device),
	}
}

// Name returns the client's configured source name.
func (s *CloudSource) Name() string { return s.client.Name() }

// OpenAPI reports the account flavour.
func (s *CloudSource) OpenAPI() bool { return s.openAPI }

// Refresh fetches the account's devices and replaces the cached map.
func (s *CloudSource) Refresh(ctx context.Context) ([]*point.Device, error) {
	devices, err := s.client.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.devices = make(map[string]*point.Device, len(devices))
	for _, d := range devices {
		s.devices[d.ID] = d
	}
	s.mu.Unlock()

	return devices, nil
}

// FetchDevice fetches one device fresh and adds it to the cached map,
// so command routing sees it without waiting for the next Refresh.
func (s *CloudSource) FetchDevice(ctx context.Context, deviceID string) (*point.Device, error) {
	dev, err := s.client.FetchDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.devices[dev.ID] = dev
	s.mu.Unlock()

	return dev, nil
}

// Devices returns the cached snapshot map from the last refresh.
func (s *CloudSource) Devices() map[string]*point.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*point.Device, len(s.devices))
	for id, d := range s.devices {
		out[id] = d
	}
	return out
}

// SendCommands issues a plain command batch through the client.
func (s *CloudSource) SendCommands(ctx context.Context, deviceID string, commands []Command) error {
	out := make([]tuya.Command, len(commands))
	for i, c := range commands {
		out[i] = tuya.Command{Code: c.Code, Value: c.Value}
	}
	return s.client.SendCommands(ctx, deviceID, out)
}

// SendPropertyUpdate issues a shadow-property write through the
// client.
func (s *CloudSource) SendPropertyUpdate(ctx context.Context, deviceID string, properties map[string]any) error {
	return s.client.SendPropertyUpdate(ctx, deviceID, properties)
}
