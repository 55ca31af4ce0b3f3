package gotcc

import (
	"fmt"
	"time"
)

// TimeoutClass groups parameters that share a staleness threshold.
type TimeoutClass uint8

const (
	YawResponse TimeoutClass = iota + 1
	PitchResponse
	States
	RoverGNSS
	BaseGNSS
	GlobalPosition
)

// DefaultTimeout is the staleness threshold every class starts with.
const DefaultTimeout = 20 * time.Millisecond

var timeoutNames = map[TimeoutClass]string{
	YawResponse:    "YawResponse",
	PitchResponse:  "PitchResponse",
	States:         "States",
	RoverGNSS:      "RoverGNSS",
	BaseGNSS:       "BaseGNSS",
	GlobalPosition: "GlobalPosition",
}

func (tc TimeoutClass) String() string {
	if name, ok := timeoutNames[tc]; ok {
		return name
	}
	return fmt.Sprintf("TimeoutClass(%d)", uint8(tc))
}

func (tc TimeoutClass) valid() bool {
	_, ok := timeoutNames[tc]
	return ok
}

// TimeoutClasses returns every class in declaration order.
func TimeoutClasses() []TimeoutClass {
	return []TimeoutClass{YawResponse, PitchResponse, States, RoverGNSS, BaseGNSS, GlobalPosition}
}

// TimeoutNamed resolves a timeout class from its name, ignoring case, dashes
// and underscores.
func TimeoutNamed(name string) (TimeoutClass, error) {
	want := normalizeName(name)
	for tc, n := range timeoutNames {
		if normalizeName(n) == want {
			return tc, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTimeout, name)
}

// Watchdog channel codes the device distinguishes in reporting watchdog
// config frames.
const (
	watchdogMain  byte = 0x01
	watchdogRover byte = 0x05
	watchdogBase  byte = 0x06
)

func (tc TimeoutClass) watchdogChannel() byte {
	switch tc {
	case RoverGNSS:
		return watchdogRover
	case BaseGNSS:
		return watchdogBase
	default:
		return watchdogMain
	}
}
