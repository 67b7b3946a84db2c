package registry

import (
	"context"

	"github.com/nerrad567/tuya-fusion-core/internal/point"
)

// VirtualFunc is a synthetic action handled locally instead of being
// sent to the cloud, such as resetting a running counter.
type VirtualFunc func(ctx context.Context, m *Manager, dev *point.Device, value any) error

// RegisterVirtualFunction binds a virtual function to a (category,
// code) pair. Registration is not safe for concurrent use with
// SendCommand; bind everything during startup.
func (m *Manager) RegisterVirtualFunction(category, code string, fn VirtualFunc) {
	if m.virtualFns[category] == nil {
		m.virtualFns[category] = make(map[string]VirtualFunc)
	}
	m.virtualFns[category][code] = fn
}

// virtualFunction looks up the handler for a (category, code) pair.
func (m *Manager) virtualFunction(category, code string) VirtualFunc {
	return m.virtualFns[category][code]
}

// registerDefaultVirtualFunctions binds the built-in synthetic
// actions: resetting the accumulated consumption counter on the
// metering categories.
func registerDefaultVirtualFunctions(m *Manager) {
	for _, category := range []string{"zndb", "dlq", "pc", "cz", "kg", "wkcz"} {
		m.RegisterVirtualFunction(category, "reset_add_ele", resetEnergyTotal)
	}
}

// resetEnergyTotal zeroes the running consumption total and its
// mirrored sibling, then notifies listeners.
func resetEnergyTotal(_ context.Context, m *Manager, dev *point.Device, _ any) error {
	lock := m.commitLock(dev.ID)
	lock.Lock()
	var codes []string
	for _, code := range []string{"add_ele", "add_ele_total"} {
		if _, ok := dev.Status[code]; ok {
			dev.Status[code] = float64(0)
			codes = append(codes, code)
		}
	}
	lock.Unlock()

	if len(codes) > 0 {
		m.logger.Info("energy total reset", "device", dev.ID, "codes", codes)
		m.notify(dev.ID, codes)
	}
	return nil
}
