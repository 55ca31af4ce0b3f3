package gotcc

import (
	"fmt"
	"sort"
	"strings"
)

// Command identifies a controllable function of the device. The numeric
// value doubles as the CAN identifier command frames are addressed to.
type Command uint16

const (
	CmdYawPosition           Command = 1300
	CmdYawVelocity           Command = 1301
	CmdYawRelativePosition   Command = 1302
	CmdYawMotionMode         Command = 1307
	CmdPitchPosition         Command = 1310
	CmdPitchVelocity         Command = 1311
	CmdPitchRelativePosition Command = 1312
	CmdPitchMotionMode       Command = 1317
	CmdCover                 Command = 1400
	CmdFan                   Command = 1403
	CmdChargeBattery         Command = 1414
	CmdOESHeater             Command = 1430
	CmdDrivesHeater          Command = 1432
	CmdYawMinPosition        Command = 1653
	CmdYawMaxPosition        Command = 1655
	CmdPitchMinPosition      Command = 1703
	CmdPitchMaxPosition      Command = 1705
)

var commandNames = map[Command]string{
	CmdYawPosition:           "YawPosition",
	CmdYawVelocity:           "YawVelocity",
	CmdYawRelativePosition:   "YawRelativePosition",
	CmdYawMotionMode:         "YawMotionMode",
	CmdPitchPosition:         "PitchPosition",
	CmdPitchVelocity:         "PitchVelocity",
	CmdPitchRelativePosition: "PitchRelativePosition",
	CmdPitchMotionMode:       "PitchMotionMode",
	CmdCover:                 "Cover",
	CmdFan:                   "Fan",
	CmdChargeBattery:         "ChargeBattery",
	CmdOESHeater:             "OESHeater",
	CmdDrivesHeater:          "DrivesHeater",
	CmdYawMinPosition:        "YawMinPosition",
	CmdYawMaxPosition:        "YawMaxPosition",
	CmdPitchMinPosition:      "PitchMinPosition",
	CmdPitchMaxPosition:      "PitchMaxPosition",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", uint16(c))
}

// CommandNamed resolves a command from its name, ignoring case, dashes and
// underscores.
func CommandNamed(name string) (Command, error) {
	want := normalizeName(name)
	for cmd, n := range commandNames {
		if normalizeName(n) == want {
			return cmd, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

func normalizeName(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "")
	return strings.ReplaceAll(s, "-", "")
}

// Encoding selects the payload layout of a command frame. The value is the
// discriminator byte the device expects at data[1].
type Encoding byte

const (
	// EncodingValue carries a big endian float32 at data[4:8].
	EncodingValue Encoding = 0x02
	// EncodingMode carries a single byte at data[4].
	EncodingMode Encoding = 0x0A
)

type CommandSpec struct {
	Encoding Encoding
	Min, Max float64
}

func (s CommandSpec) InRange(v float64) bool {
	return v >= s.Min && v <= s.Max
}

// CommandSet is an immutable command table. Build one up front and share it;
// lookups are safe from any goroutine.
type CommandSet struct {
	specs map[Command]CommandSpec
}

func NewCommandSet(specs map[Command]CommandSpec) *CommandSet {
	m := make(map[Command]CommandSpec, len(specs))
	for cmd, spec := range specs {
		m[cmd] = spec
	}
	return &CommandSet{specs: m}
}

// DefaultCommands returns the command table of the production device.
func DefaultCommands() *CommandSet {
	return NewCommandSet(map[Command]CommandSpec{
		CmdYawPosition:           {EncodingValue, -180, 180},
		CmdYawVelocity:           {EncodingValue, -80, 80},
		CmdYawRelativePosition:   {EncodingValue, -180, 180},
		CmdYawMotionMode:         {EncodingMode, 0, 2},
		CmdPitchPosition:         {EncodingValue, -20, 90},
		CmdPitchVelocity:         {EncodingValue, -80, 80},
		CmdPitchRelativePosition: {EncodingValue, -20, 90},
		CmdPitchMotionMode:       {EncodingMode, 0, 2},
		CmdCover:                 {EncodingMode, 0, 1},
		CmdFan:                   {EncodingMode, 0, 1},
		CmdChargeBattery:         {EncodingMode, 0, 1},
		CmdOESHeater:             {EncodingMode, 0, 1},
		CmdDrivesHeater:          {EncodingMode, 0, 1},
		CmdYawMinPosition:        {EncodingValue, -180, 180},
		CmdYawMaxPosition:        {EncodingValue, -180, 180},
		CmdPitchMinPosition:      {EncodingValue, -20, 90},
		CmdPitchMaxPosition:      {EncodingValue, -20, 90},
	})
}

func (cs *CommandSet) Get(cmd Command) (CommandSpec, error) {
	spec, ok := cs.specs[cmd]
	if !ok {
		return CommandSpec{}, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
	return spec, nil
}

// All returns every command in the set ordered by identifier.
func (cs *CommandSet) All() []Command {
	out := make([]Command, 0, len(cs.specs))
	for cmd := range cs.specs {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
