package fop

import (
	"fmt"
	"time"
)

// MaxWindowSize is the largest sliding window a modulo-256 sequence space allows
const MaxWindowSize = 255

// Config configures a FOP engine
type Config struct {
	// Identity, used in log lines
	ID string

	// Sliding window width K
	WindowSize int

	// Transmission limit L: retransmissions allowed per frame before the timeout action
	TransmissionLimit int

	// Timer T1 initial value
	T1 time.Duration

	// Action when T1 expires with the limit reached
	TimeoutType TimeoutType

	// Period of status reports to observers (0 = only on change)
	StatusInterval time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		ID:                "fop",
		WindowSize:        10,
		TransmissionLimit: 3,
		T1:                5 * time.Second,
		TimeoutType:       TimeoutAlert,
	}
}

// Validate checks the configuration values
func (c Config) Validate() error {
	if c.WindowSize <= 0 || c.WindowSize > MaxWindowSize {
		return fmt.Errorf("%w: window size %d", ErrInvalidConfig, c.WindowSize)
	}
	if c.TransmissionLimit <= 0 {
		return fmt.Errorf("%w: transmission limit %d", ErrInvalidConfig, c.TransmissionLimit)
	}
	if c.T1 <= 0 {
		return fmt.Errorf("%w: T1 %s", ErrInvalidConfig, c.T1)
	}
	if c.TimeoutType != TimeoutAlert && c.TimeoutType != TimeoutSuspend {
		return fmt.Errorf("%w: timeout type %d", ErrInvalidConfig, c.TimeoutType)
	}
	if c.StatusInterval < 0 {
		return fmt.Errorf("%w: status interval %s", ErrInvalidConfig, c.StatusInterval)
	}
	return nil
}

// Status is a point-in-time view of the engine
type Status struct {
	State      State
	VS         uint8 // next sequence number to assign
	QueueDepth int   // unacknowledged AD frames
	Pending    int   // Transmit calls waiting for the window
	Wait       bool  // wait flag from the latest CLCW
	Lockout    bool  // lockout flag from the latest CLCW
	Config     Config
}

// String returns a string representation of the status
func (s Status) String() string {
	return fmt.Sprintf("Status{State=%s, V(S)=%d, Queue=%d/%d, Pending=%d, Wait=%t, Lockout=%t}",
		s.State, s.VS, s.QueueDepth, s.Config.WindowSize, s.Pending, s.Wait, s.Lockout)
}
