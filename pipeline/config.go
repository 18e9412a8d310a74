package pipeline

import "time"

// Defaults applied to zero Config fields.
const (
	DefaultWorkers        = 4
	DefaultCallTimeout    = 5 * time.Second
	DefaultFanoutDeadline = 20 * time.Second
	DefaultThreshold      = 0.85
)

// Config tunes the OCR fan-out. Zero values select the defaults.
type Config struct {
	// Workers bounds concurrent engine calls per Pipeline. A call that
	// outlives CallTimeout keeps its slot until the engine returns.
	Workers int
	// CallTimeout bounds a single engine call.
	CallTimeout time.Duration
	// FanoutDeadline bounds how long the whole fan-out is awaited.
	FanoutDeadline time.Duration
	// Threshold is the acceptance confidence. Zero or negative selects
	// DefaultThreshold; to accept every candidate use a tiny positive value
	// such as math.SmallestNonzeroFloat64.
	Threshold float64
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.FanoutDeadline <= 0 {
		c.FanoutDeadline = DefaultFanoutDeadline
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	return c
}
