package ap

// ApState is the observer-visible soft AP state. Transitions follow one
// of these sequences for any session:
//
//	Enabling -> Enabled -> Disabling -> Disabled
//	Enabling -> Failed
//	Enabling -> Enabled -> Failed -> Disabling -> Disabled
//
// Failed never appears after Disabled.
type ApState uint8

const (
	// ApStateDisabled indicates no AP is running.
	ApStateDisabled ApState = iota

	// ApStateEnabling indicates the AP is being brought up.
	ApStateEnabling

	// ApStateEnabled indicates the AP is running.
	ApStateEnabled

	// ApStateDisabling indicates the AP is being torn down.
	ApStateDisabling

	// ApStateFailed indicates the AP failed to start or failed fatally.
	ApStateFailed
)

// String returns the state name.
func (s ApState) String() string {
	switch s {
	case ApStateDisabled:
		return "DISABLED"
	case ApStateEnabling:
		return "ENABLING"
	case ApStateEnabled:
		return "ENABLED"
	case ApStateDisabling:
		return "DISABLING"
	case ApStateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// FailureReason is the stable code carried by a Failed notification.
type FailureReason uint8

const (
	// FailureNone indicates no failure (used with non-Failed states).
	FailureNone FailureReason = iota

	// FailureGeneral is an unspecified driver or stack failure.
	FailureGeneral

	// FailureNoChannel indicates no usable channel on the resolved band.
	FailureNoChannel

	// FailureUnsupportedConfiguration indicates the requested
	// configuration cannot be satisfied by the device capability.
	FailureUnsupportedConfiguration

	// FailureUserRejected indicates the user declined the interface
	// conflict prompt.
	FailureUserRejected

	// FailureInterfaceConflict indicates the driver could not create the
	// requested interface alongside existing ones.
	FailureInterfaceConflict
)

// String returns the failure reason name.
func (r FailureReason) String() string {
	switch r {
	case FailureNone:
		return "NONE"
	case FailureGeneral:
		return "GENERAL"
	case FailureNoChannel:
		return "NO_CHANNEL"
	case FailureUnsupportedConfiguration:
		return "UNSUPPORTED_CONFIGURATION"
	case FailureUserRejected:
		return "USER_REJECTED"
	case FailureInterfaceConflict:
		return "INTERFACE_CONFLICT"
	default:
		return "UNKNOWN"
	}
}

// StopReason records why a session ended.
type StopReason uint8

const (
	// StopReasonExplicit is a caller-requested stop.
	StopReasonExplicit StopReason = iota

	// StopReasonInterfaceDestroyed means the interface was destroyed
	// underneath the session.
	StopReasonInterfaceDestroyed

	// StopReasonInterfaceDown means the interface went down.
	StopReasonInterfaceDown

	// StopReasonHalFailure is a fatal whole-AP driver failure.
	StopReasonHalFailure

	// StopReasonIdleTimeout is the whole-session idle shutdown.
	StopReasonIdleTimeout

	// StopReasonNoInstances means every bridged instance became unusable.
	StopReasonNoInstances
)

// String returns the stop reason name.
func (r StopReason) String() string {
	switch r {
	case StopReasonExplicit:
		return "EXPLICIT"
	case StopReasonInterfaceDestroyed:
		return "INTERFACE_DESTROYED"
	case StopReasonInterfaceDown:
		return "INTERFACE_DOWN"
	case StopReasonHalFailure:
		return "HAL_FAILURE"
	case StopReasonIdleTimeout:
		return "IDLE_TIMEOUT"
	case StopReasonNoInstances:
		return "NO_INSTANCES"
	default:
		return "UNKNOWN"
	}
}

// BlockReason is the reason code sent with a forced client disconnect.
type BlockReason uint8

const (
	// BlockedByUser indicates the client is on the block list or absent
	// from the allow list while client control is enabled.
	BlockedByUser BlockReason = iota

	// NoMoreStas indicates the client limit has been reached.
	NoMoreStas
)

// String returns the block reason name.
func (r BlockReason) String() string {
	switch r {
	case BlockedByUser:
		return "BLOCKED_BY_USER"
	case NoMoreStas:
		return "NO_MORE_STAS"
	default:
		return "UNKNOWN"
	}
}
