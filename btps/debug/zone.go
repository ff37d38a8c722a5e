package debug

// Zone is a debug category bit.
type Zone uint32

const (
	ZoneCriticalError Zone = 1 << 0
	ZoneEnterExit     Zone = 1 << 1
	ZoneKernel        Zone = 1 << 2
	ZoneGeneral       Zone = 1 << 3
	ZoneDevelopment   Zone = 1 << 4
	ZoneVendor        Zone = 1 << 7
	ZoneAny           Zone = 0xFFFFFFFF
)

// DefaultZones is the mask a console starts with when none is configured.
const DefaultZones = ZoneCriticalError
