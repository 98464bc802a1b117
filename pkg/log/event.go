package log

import "time"

// Event represents one session event. CBOR encoding uses integer keys
// for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Interface is the AP interface name (empty before creation).
	Interface string `cbor:"3,keyasint,omitempty"`

	// Instance is the AP instance for instance-scoped events.
	Instance string `cbor:"4,keyasint,omitempty"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Type-specific payload (exactly one of these is set).
	StateChange *StateChangeEvent `cbor:"6,keyasint,omitempty"`
	Client      *ClientEvent      `cbor:"7,keyasint,omitempty"`
	Driver      *DriverErrorEvent `cbor:"8,keyasint,omitempty"`
	Timer       *TimerEvent       `cbor:"9,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState indicates a session state transition.
	CategoryState Category = 0

	// CategoryClient indicates a client connect/disconnect/block.
	CategoryClient Category = 1

	// CategoryDriver indicates a driver command error.
	CategoryDriver Category = 2

	// CategoryTimer indicates idle-shutdown timer activity.
	CategoryTimer Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryClient:
		return "CLIENT"
	case CategoryDriver:
		return "DRIVER"
	case CategoryTimer:
		return "TIMER"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures a session state transition.
type StateChangeEvent struct {
	// OldState and NewState are the observer-visible state names.
	OldState string `cbor:"1,keyasint"`
	NewState string `cbor:"2,keyasint"`

	// Reason carries the failure or stop reason when relevant.
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ClientEvent captures a client connect, disconnect or admission block.
type ClientEvent struct {
	// Mac is the client MAC address string.
	Mac string `cbor:"1,keyasint"`

	// Connected indicates the client joined (false: left or blocked).
	Connected bool `cbor:"2,keyasint"`

	// Blocked indicates admission control rejected the client.
	Blocked bool `cbor:"3,keyasint,omitempty"`

	// Reason is the block reason name when Blocked is set.
	Reason string `cbor:"4,keyasint,omitempty"`
}

// DriverErrorEvent captures a failed driver command.
type DriverErrorEvent struct {
	// Op is the driver operation name (e.g. "startAp").
	Op string `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`
}

// TimerEvent captures an idle-shutdown timer arm/disarm/fire.
type TimerEvent struct {
	// Name is the timer name.
	Name string `cbor:"1,keyasint"`

	// Action is "arm", "disarm" or "fire".
	Action string `cbor:"2,keyasint"`

	// DurationMillis is the armed duration (arm only).
	DurationMillis int64 `cbor:"3,keyasint,omitempty"`
}
