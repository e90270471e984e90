// Package config holds the option set shared by the driver, the emitter
// and the in-process checker.
//
// Every knob has a default chosen to match the emitted checker's behavior
// when no flag is given; Validate rejects combinations the back ends cannot
// honor before any work is done.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Tristate is an on/off/auto switch.
type Tristate uint8

const (
	Auto Tristate = iota
	On
	Off
)

func (t Tristate) String() string {
	switch t {
	case On:
		return "on"
	case Off:
		return "off"
	}
	return "auto"
}

// ParseTristate parses on/off/auto.
func ParseTristate(s string) (Tristate, error) {
	switch s {
	case "on":
		return On, nil
	case "off":
		return Off, nil
	case "auto":
		return Auto, nil
	}
	return Auto, fmt.Errorf("invalid value %q, expected on, off or auto", s)
}

// TraceCategory is a bitmask of runtime trace categories.
type TraceCategory uint8

const (
	TraceHandleReads TraceCategory = 1 << iota
	TraceHandleWrites
	TraceQueue
	TraceSet
)

var traceNames = map[string]TraceCategory{
	"handle_reads":  TraceHandleReads,
	"handle_writes": TraceHandleWrites,
	"queue":         TraceQueue,
	"set":           TraceSet,
}

// ParseTraces parses a comma-separated list of trace categories.
func ParseTraces(s string) (TraceCategory, error) {
	var out TraceCategory
	if s == "" {
		return 0, nil
	}
	for _, name := range strings.Split(s, ",") {
		c, ok := traceNames[strings.TrimSpace(name)]
		if !ok {
			return 0, fmt.Errorf("unknown trace category %q", name)
		}
		out |= c
	}
	return out, nil
}

// valueTypes maps the supported --value-type spellings to their widths in
// bits.
var valueTypes = map[string]int{
	"int8":  8,
	"int16": 16,
	"int32": 32,
	"int64": 64,
}

// Config is the resolved option set.
type Config struct {
	// Threads is the number of worker threads in the emitted checker and in
	// run mode. 0 means hardware concurrency.
	Threads int

	// MaxErrors is how many errors to tolerate before giving up.
	MaxErrors uint64

	// Sandbox controls OS-level privilege reduction before exploration.
	Sandbox Tristate

	// Color controls ANSI color in checker output.
	Color Tristate

	// SetCapacity is the initial seen-set allocation in bytes.
	SetCapacity uint64

	// SetExpandThreshold is the occupancy percentage that triggers seen-set
	// expansion.
	SetExpandThreshold int

	// ValueType names the scalar carrying model values (int8..int64).
	ValueType string

	// OverflowChecks enables checked arithmetic in the generated checker.
	OverflowChecks bool

	// Traces is the set of enabled runtime trace categories.
	Traces TraceCategory

	// DeadlockDetection is stuck, stuttering or off. Only off has defined
	// semantics at present.
	DeadlockDetection string

	// SymmetryReduction is heuristic, exhaustive or off. Only off has
	// defined semantics at present.
	SymmetryReduction string

	// SMTSimplification requests guard simplification through an external
	// solver before emission.
	SMTSimplification bool

	// MachineReadable switches state output to XML state_component tags.
	MachineReadable bool

	// CounterexampleDiff elides unchanged state components when printing
	// counterexample traces.
	CounterexampleDiff bool
}

// Default returns the configuration used when no flags are given.
func Default() Config {
	return Config{
		Threads:            0, // hardware concurrency
		MaxErrors:          1,
		Sandbox:            Off,
		Color:              Auto,
		SetCapacity:        8 * 1024 * 1024,
		SetExpandThreshold: 65,
		ValueType:          "int64",
		OverflowChecks:     true,
		DeadlockDetection:  "off",
		SymmetryReduction:  "off",
		CounterexampleDiff: true,
	}
}

// EffectiveThreads resolves Threads, substituting hardware concurrency for
// zero.
func (c *Config) EffectiveThreads() int {
	if c.Threads > 0 {
		return c.Threads
	}
	return runtime.NumCPU()
}

// ValueBits returns the width in bits of the configured value type.
func (c *Config) ValueBits() int {
	return valueTypes[c.ValueType]
}

// Validate rejects configurations the back ends cannot honor.
func (c *Config) Validate() error {
	if c.Threads < 0 {
		return fmt.Errorf("invalid thread count %d", c.Threads)
	}
	if c.MaxErrors == 0 {
		return fmt.Errorf("invalid --max-errors value 0")
	}
	if _, ok := valueTypes[c.ValueType]; !ok {
		return fmt.Errorf("invalid value type %q", c.ValueType)
	}
	if c.SetExpandThreshold < 1 || c.SetExpandThreshold > 100 {
		return fmt.Errorf("set expansion threshold must be within 1..100, got %d",
			c.SetExpandThreshold)
	}
	switch c.DeadlockDetection {
	case "stuck", "stuttering", "off":
	default:
		return fmt.Errorf("invalid deadlock detection mode %q", c.DeadlockDetection)
	}
	switch c.SymmetryReduction {
	case "heuristic", "exhaustive", "off":
	default:
		return fmt.Errorf("invalid symmetry reduction mode %q", c.SymmetryReduction)
	}
	return nil
}
