package fop

import (
	"errors"
	"fmt"
)

// State is the FOP-1 state. Exactly one is current at any time.
type State int

const (
	StateActive                State = iota + 1 // S1
	StateRetransmitWithoutWait                  // S2
	StateRetransmitWithWait                     // S3
	StateInitialisingWithoutBC                  // S4
	StateInitialisingWithBC                     // S5
	StateInitial                                // S6
	StateSuspended                              // frozen after transmission limit with suspend timeout type
)

// String returns string representation of State
func (s State) String() string {
	switch s {
	case StateActive:
		return "S1-Active"
	case StateRetransmitWithoutWait:
		return "S2-RetransmitWithoutWait"
	case StateRetransmitWithWait:
		return "S3-RetransmitWithWait"
	case StateInitialisingWithoutBC:
		return "S4-InitialisingWithoutBC"
	case StateInitialisingWithBC:
		return "S5-InitialisingWithBC"
	case StateInitial:
		return "S6-Initial"
	case StateSuspended:
		return "Suspended"
	default:
		return "Unknown"
	}
}

// acceptsFrames reports whether new AD frames may be released in this state
func (s State) acceptsFrames() bool {
	return s == StateActive || s == StateRetransmitWithoutWait
}

// DirectiveKind identifies an operator directive
type DirectiveKind int

const (
	InitADWithoutCLCW DirectiveKind = iota
	InitADWithCLCW
	InitADWithUnlock
	InitADWithSetVR
	Terminate
	Resume
	SetVS
	SetFOPSlidingWindow
	SetT1Initial
	SetTransmissionLimit
	SetTimeoutType
)

// String returns string representation of DirectiveKind
func (d DirectiveKind) String() string {
	switch d {
	case InitADWithoutCLCW:
		return "INIT_AD_WITHOUT_CLCW"
	case InitADWithCLCW:
		return "INIT_AD_WITH_CLCW"
	case InitADWithUnlock:
		return "INIT_AD_WITH_UNLOCK"
	case InitADWithSetVR:
		return "INIT_AD_WITH_SET_V_R"
	case Terminate:
		return "TERMINATE"
	case Resume:
		return "RESUME"
	case SetVS:
		return "SET_V_S"
	case SetFOPSlidingWindow:
		return "SET_FOP_SLIDING_WINDOW"
	case SetT1Initial:
		return "SET_T1_INITIAL"
	case SetTransmissionLimit:
		return "SET_TRANSMISSION_LIMIT"
	case SetTimeoutType:
		return "SET_TIMEOUT_TYPE"
	default:
		return "UNKNOWN"
	}
}

// ParseDirectiveKind returns the directive named by s, as printed by String
func ParseDirectiveKind(s string) (DirectiveKind, error) {
	for k := InitADWithoutCLCW; k <= SetTimeoutType; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDirective, s)
}

// AlertCode identifies the reason for an alert
type AlertCode int

const (
	AlertLimit   AlertCode = iota // Transmission limit reached on a CLCW retransmit request
	AlertT1                       // T1 expired with the transmission limit reached
	AlertLockout                  // FARM reported lockout
	AlertSynch                    // Synchronisation lost
	AlertNNR                      // Report value outside the sent window
	AlertCLCW                     // Invalid CLCW
	AlertLLIF                     // Lower layer interface failure
	AlertTerm                     // Service terminated by directive
)

// String returns string representation of AlertCode
func (a AlertCode) String() string {
	switch a {
	case AlertLimit:
		return "LIMIT"
	case AlertT1:
		return "T1"
	case AlertLockout:
		return "LOCKOUT"
	case AlertSynch:
		return "SYNCH"
	case AlertNNR:
		return "NN_R"
	case AlertCLCW:
		return "CLCW"
	case AlertLLIF:
		return "LLIF"
	case AlertTerm:
		return "TERM"
	default:
		return "UNKNOWN"
	}
}

// OperationStatus is the outcome reported for a directive or a frame transfer
type OperationStatus int

const (
	PositiveConfirm OperationStatus = iota
	NegativeConfirm
)

// String returns string representation of OperationStatus
func (s OperationStatus) String() string {
	switch s {
	case PositiveConfirm:
		return "POSITIVE_CONFIRM"
	case NegativeConfirm:
		return "NEGATIVE_CONFIRM"
	default:
		return "UNKNOWN"
	}
}

// TimeoutType selects what happens when T1 expires with the limit reached
type TimeoutType int

const (
	TimeoutAlert   TimeoutType = 0
	TimeoutSuspend TimeoutType = 1
)

// String returns string representation of TimeoutType
func (t TimeoutType) String() string {
	switch t {
	case TimeoutAlert:
		return "Alert"
	case TimeoutSuspend:
		return "Suspend"
	default:
		return "Unknown"
	}
}

// Errors
var (
	ErrDisposed         = errors.New("fop engine disposed")
	ErrRejected         = errors.New("frame rejected")
	ErrTransmitTimeout  = errors.New("transmit timed out waiting for window")
	ErrInvalidConfig    = errors.New("invalid fop configuration")
	ErrNilFrame         = errors.New("nil frame")
	ErrUnknownDirective = errors.New("unknown directive")
)

// RejectReason explains why a frame was not accepted
type RejectReason int

const (
	ReasonNotInitialised RejectReason = iota
	ReasonInitialising
	ReasonSuspended
	ReasonPurged
	ReasonDisposed
	ReasonSinkBusy
	ReasonInvalidType
)

// String returns string representation of RejectReason
func (r RejectReason) String() string {
	switch r {
	case ReasonNotInitialised:
		return "AD service not initialised"
	case ReasonInitialising:
		return "AD service initialising"
	case ReasonSuspended:
		return "AD service suspended"
	case ReasonPurged:
		return "AD service terminated while waiting"
	case ReasonDisposed:
		return "engine disposed"
	case ReasonSinkBusy:
		return "frame sink busy"
	case ReasonInvalidType:
		return "frame type not accepted"
	default:
		return "unknown"
	}
}

// RejectedError is returned by Transmit when a frame was not accepted
type RejectedError struct {
	Reason RejectReason
	State  State
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("frame rejected: %s (state %s)", e.Reason, e.State)
}

// Is makes errors.Is(err, ErrRejected) match any rejection
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}
