package gotcc

import (
	"fmt"
	"sort"
)

// Parameter identifies a telemetry channel reported by the device. The
// numeric value doubles as the CAN identifier the device reports it on.
type Parameter uint16

const (
	ParamYawPosition      Parameter = 1303
	ParamYawVelocity      Parameter = 1304
	ParamYawEngine        Parameter = 1305
	ParamYawMotionMode    Parameter = 1308
	ParamYawPower         Parameter = 1309
	ParamPitchPosition    Parameter = 1313
	ParamPitchVelocity    Parameter = 1314
	ParamPitchEngine      Parameter = 1315
	ParamPitchMotionMode  Parameter = 1318
	ParamPitchPower       Parameter = 1319
	ParamFanState         Parameter = 1404
	ParamCaseTemperature  Parameter = 1405
	ParamCoverState       Parameter = 1409
	ParamChargingCurrent  Parameter = 1413
	ParamChargingState    Parameter = 1415
	ParamShotCounter      Parameter = 1418
	ParamYawCurrentStatus Parameter = 1467
	ParamRoverHeading     Parameter = 1507
	ParamRoverAccuracy    Parameter = 1509
	ParamBaseLatitude     Parameter = 1520
	ParamBaseLongitude    Parameter = 1521
	ParamBaseSeaLevel     Parameter = 1523
	ParamBaseAccuracy     Parameter = 1524
	ParamRoverYaw         Parameter = 1800
	ParamGlobalPitch      Parameter = 1801
	ParamGlobalRoll       Parameter = 1802
)

var parameterNames = map[Parameter]string{
	ParamYawPosition:      "YawPosition",
	ParamYawVelocity:      "YawVelocity",
	ParamYawEngine:        "YawEngine",
	ParamYawMotionMode:    "YawMotionMode",
	ParamYawPower:         "YawPower",
	ParamPitchPosition:    "PitchPosition",
	ParamPitchVelocity:    "PitchVelocity",
	ParamPitchEngine:      "PitchEngine",
	ParamPitchMotionMode:  "PitchMotionMode",
	ParamPitchPower:       "PitchPower",
	ParamFanState:         "FanState",
	ParamCaseTemperature:  "CaseTemperature",
	ParamCoverState:       "CoverState",
	ParamChargingCurrent:  "ChargingCurrent",
	ParamChargingState:    "ChargingState",
	ParamShotCounter:      "ShotCounter",
	ParamYawCurrentStatus: "YawCurrentStatus",
	ParamRoverHeading:     "RoverHeading",
	ParamRoverAccuracy:    "RoverAccuracy",
	ParamBaseLatitude:     "BaseLatitude",
	ParamBaseLongitude:    "BaseLongitude",
	ParamBaseSeaLevel:     "BaseSeaLevel",
	ParamBaseAccuracy:     "BaseAccuracy",
	ParamRoverYaw:         "RoverYaw",
	ParamGlobalPitch:      "GlobalPitch",
	ParamGlobalRoll:       "GlobalRoll",
}

func (p Parameter) String() string {
	if name, ok := parameterNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Parameter(%d)", uint16(p))
}

// ParameterNamed resolves a parameter from its name, ignoring case, dashes
// and underscores.
func ParameterNamed(name string) (Parameter, error) {
	want := normalizeName(name)
	for p, n := range parameterNames {
		if normalizeName(n) == want {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
}

// DecodeKind selects how a parameter payload is unpacked.
type DecodeKind uint8

const (
	// DecodeFloat32 reads a big endian float32 from data[4:8].
	DecodeFloat32 DecodeKind = iota
	// DecodeUint8 reads the single byte at data[4].
	DecodeUint8
	// DecodeInt32 reads a big endian int32 from data[4:8].
	DecodeInt32
	// DecodeScaled reads a big endian int32 from data[4:8] and divides it
	// by Scale.
	DecodeScaled
	// DecodeBool reads data[4] != 0.
	DecodeBool
)

type ParameterSpec struct {
	Decode DecodeKind
	Scale  float64
	Class  TimeoutClass
}

// ParameterSet is an immutable parameter table with a frame identifier
// reverse index. Build one up front and share it; lookups are safe from any
// goroutine.
type ParameterSet struct {
	specs   map[Parameter]ParameterSpec
	byFrame map[uint32]Parameter
}

func NewParameterSet(specs map[Parameter]ParameterSpec) *ParameterSet {
	ps := &ParameterSet{
		specs:   make(map[Parameter]ParameterSpec, len(specs)),
		byFrame: make(map[uint32]Parameter, len(specs)),
	}
	for p, spec := range specs {
		ps.specs[p] = spec
		ps.byFrame[uint32(p)] = p
	}
	return ps
}

// DefaultParameters returns the telemetry table of the production device.
func DefaultParameters() *ParameterSet {
	return NewParameterSet(map[Parameter]ParameterSpec{
		ParamYawPosition:      {DecodeFloat32, 0, YawResponse},
		ParamYawVelocity:      {DecodeFloat32, 0, YawResponse},
		ParamYawEngine:        {DecodeFloat32, 0, YawResponse},
		ParamYawMotionMode:    {DecodeUint8, 0, YawResponse},
		ParamYawPower:         {DecodeUint8, 0, YawResponse},
		ParamPitchPosition:    {DecodeFloat32, 0, PitchResponse},
		ParamPitchVelocity:    {DecodeFloat32, 0, PitchResponse},
		ParamPitchEngine:      {DecodeFloat32, 0, PitchResponse},
		ParamPitchMotionMode:  {DecodeUint8, 0, PitchResponse},
		ParamPitchPower:       {DecodeUint8, 0, PitchResponse},
		ParamFanState:         {DecodeBool, 0, States},
		ParamCaseTemperature:  {DecodeFloat32, 0, States},
		ParamCoverState:       {DecodeBool, 0, States},
		ParamChargingCurrent:  {DecodeFloat32, 0, States},
		ParamChargingState:    {DecodeBool, 0, States},
		ParamShotCounter:      {DecodeInt32, 0, States},
		ParamYawCurrentStatus: {DecodeBool, 0, States},
		ParamRoverHeading:     {DecodeScaled, 100000, RoverGNSS},
		ParamRoverAccuracy:    {DecodeScaled, 100000, RoverGNSS},
		ParamRoverYaw:         {DecodeFloat32, 0, RoverGNSS},
		ParamBaseLatitude:     {DecodeScaled, 10000000, BaseGNSS},
		ParamBaseLongitude:    {DecodeScaled, 10000000, BaseGNSS},
		ParamBaseSeaLevel:     {DecodeScaled, 1000, BaseGNSS},
		ParamBaseAccuracy:     {DecodeScaled, 10000, BaseGNSS},
		ParamGlobalPitch:      {DecodeFloat32, 0, GlobalPosition},
		ParamGlobalRoll:       {DecodeFloat32, 0, GlobalPosition},
	})
}

func (ps *ParameterSet) Get(p Parameter) (ParameterSpec, error) {
	spec, ok := ps.specs[p]
	if !ok {
		return ParameterSpec{}, fmt.Errorf("%w: %s", ErrUnknownParameter, p)
	}
	return spec, nil
}

// ByFrameID maps a CAN identifier back to the parameter reported on it.
func (ps *ParameterSet) ByFrameID(id uint32) (Parameter, ParameterSpec, bool) {
	p, ok := ps.byFrame[id]
	if !ok {
		return 0, ParameterSpec{}, false
	}
	return p, ps.specs[p], true
}

// All returns every parameter in the set ordered by identifier.
func (ps *ParameterSet) All() []Parameter {
	out := make([]Parameter, 0, len(ps.specs))
	for p := range ps.specs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OfClass returns the parameters sharing a timeout class, ordered by
// identifier.
func (ps *ParameterSet) OfClass(tc TimeoutClass) []Parameter {
	var out []Parameter
	for p, spec := range ps.specs {
		if spec.Class == tc {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
