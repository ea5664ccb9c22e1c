package camera

// DiscoverySession lists the devices matching a set of lens types and a position.
// PositionUnspecified matches every position; an empty Types matches every type.
type DiscoverySession struct {
	Types    []DeviceType
	Position Position

	devices []Device
}

// NewDiscoverySession filters available against the given criteria.
func NewDiscoverySession(available []Device, types []DeviceType, position Position) *DiscoverySession {
	return &DiscoverySession{
		Types:    types,
		Position: position,
		devices:  available,
	}
}

// Devices returns the matching devices in the order they were configured.
func (s *DiscoverySession) Devices() []Device {
	var out []Device
	for _, d := range s.devices {
		if d == nil {
			continue
		}
		if s.Position != PositionUnspecified && d.Position() != s.Position {
			continue
		}
		if !s.matchesType(d.Type()) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (s *DiscoverySession) matchesType(t DeviceType) bool {
	if len(s.Types) == 0 {
		return true
	}
	for _, want := range s.Types {
		if want == t {
			return true
		}
	}
	return false
}
