package farm

import "time"

// FarmConfig configures a simulated FARM-1
type FarmConfig struct {
	ID   string
	VCID uint8

	// FARM sliding window width W. Half of it is the positive window, the
	// other half the negative window.
	WindowWidth int

	// Frames held for the higher layer before the wait flag is raised
	// (0 = unlimited)
	BufferSize int

	// Periodic CLCW interval (0 = report only after each frame)
	ReportInterval time.Duration

	// Limit for a single CLCW write
	ReportTimeout time.Duration
}

// DefaultFarmConfig returns default configuration
func DefaultFarmConfig(vcid uint8) FarmConfig {
	return FarmConfig{
		ID:             "farm",
		VCID:           vcid,
		WindowWidth:    20,
		BufferSize:     0,
		ReportInterval: time.Second,
		ReportTimeout:  time.Second,
	}
}

// FarmCallbacks receives accepted frames
type FarmCallbacks struct {
	OnDeliver func(data []byte)
}
