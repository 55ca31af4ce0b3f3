package gotcc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"
)

func TestEncodeCommandValue(t *testing.T) {
	cs := DefaultCommands()
	spec, err := cs.Get(CmdYawPosition)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	f, err := EncodeCommand(CmdYawPosition, spec, 45.0)
	if err != nil {
		t.Fatalf("EncodeCommand() error = %v", err)
	}
	if f.Identifier != 1300 {
		t.Errorf("Identifier = %d, want 1300", f.Identifier)
	}
	if len(f.Data) != 8 {
		t.Fatalf("DLC = %d, want 8", len(f.Data))
	}
	if f.Data[1] != 0x02 {
		t.Errorf("discriminator = 0x%02X, want 0x02", f.Data[1])
	}
	got := math.Float32frombits(binary.BigEndian.Uint32(f.Data[4:8]))
	if got != 45.0 {
		t.Errorf("payload float = %v, want 45.0", got)
	}
	for _, i := range []int{0, 2, 3} {
		if f.Data[i] != 0 {
			t.Errorf("Data[%d] = 0x%02X, want 0x00", i, f.Data[i])
		}
	}
}

func TestEncodeCommandMode(t *testing.T) {
	cs := DefaultCommands()
	spec, err := cs.Get(CmdFan)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	f, err := EncodeCommand(CmdFan, spec, 1)
	if err != nil {
		t.Fatalf("EncodeCommand() error = %v", err)
	}
	if f.Identifier != 1403 {
		t.Errorf("Identifier = %d, want 1403", f.Identifier)
	}
	if f.Data[1] != 0x0A {
		t.Errorf("discriminator = 0x%02X, want 0x0A", f.Data[1])
	}
	if f.Data[4] != 1 {
		t.Errorf("Data[4] = %d, want 1", f.Data[4])
	}
}

func TestEncodeCommandErrors(t *testing.T) {
	tests := []struct {
		name  string
		spec  CommandSpec
		value float64
	}{
		{"nan", CommandSpec{EncodingValue, -180, 180}, math.NaN()},
		{"inf", CommandSpec{EncodingValue, -180, 180}, math.Inf(1)},
		{"mode fraction", CommandSpec{EncodingMode, 0, 2}, 1.5},
		{"mode overflow", CommandSpec{EncodingMode, 0, 1000}, 300},
		{"unknown encoding", CommandSpec{Encoding(0x33), 0, 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeCommand(CmdYawPosition, tt.spec, tt.value)
			var encErr *EncodeError
			if !errors.As(err, &encErr) {
				t.Errorf("EncodeCommand() error = %v, want EncodeError", err)
			}
		})
	}
}

func TestCommandValueRoundTrip(t *testing.T) {
	cs := DefaultCommands()
	for _, cmd := range cs.All() {
		spec, err := cs.Get(cmd)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", cmd, err)
		}
		value := math.Trunc((spec.Min + spec.Max) / 2)
		f, err := EncodeCommand(cmd, spec, value)
		if err != nil {
			t.Fatalf("EncodeCommand(%s, %v) error = %v", cmd, value, err)
		}
		var got float64
		switch spec.Encoding {
		case EncodingValue:
			got = float64(math.Float32frombits(binary.BigEndian.Uint32(f.Data[4:8])))
		case EncodingMode:
			got = float64(f.Data[4])
		}
		if math.Abs(got-value) > 1e-4 {
			t.Errorf("%s: round trip = %v, want %v", cmd, got, value)
		}
	}
}

func TestDecodeParameter(t *testing.T) {
	payload := func(fill func(data []byte)) []byte {
		data := make([]byte, 8)
		if fill != nil {
			fill(data)
		}
		return data
	}
	tests := []struct {
		name    string
		spec    ParameterSpec
		data    []byte
		want    Value
		wantErr bool
	}{
		{
			name: "float",
			spec: ParameterSpec{DecodeFloat32, 0, YawResponse},
			data: payload(func(d []byte) {
				binary.BigEndian.PutUint32(d[4:8], math.Float32bits(3.25))
			}),
			want: floatValue(3.25),
		},
		{
			name: "uint8",
			spec: ParameterSpec{DecodeUint8, 0, YawResponse},
			data: payload(func(d []byte) { d[4] = 2 }),
			want: intValue(2),
		},
		{
			name: "int32",
			spec: ParameterSpec{DecodeInt32, 0, States},
			data: payload(func(d []byte) {
				n := int32(-123456)
				binary.BigEndian.PutUint32(d[4:8], uint32(n))
			}),
			want: intValue(-123456),
		},
		{
			name: "scaled",
			spec: ParameterSpec{DecodeScaled, 100000, RoverGNSS},
			data: payload(func(d []byte) {
				binary.BigEndian.PutUint32(d[4:8], uint32(int32(4512345)))
			}),
			want: floatValue(45.12345),
		},
		{
			name: "bool true",
			spec: ParameterSpec{DecodeBool, 0, States},
			data: payload(func(d []byte) { d[4] = 1 }),
			want: boolValue(true),
		},
		{
			name: "bool false",
			spec: ParameterSpec{DecodeBool, 0, States},
			data: payload(nil),
			want: boolValue(false),
		},
		{
			name:    "short payload",
			spec:    ParameterSpec{DecodeFloat32, 0, YawResponse},
			data:    []byte{0, 0, 0, 0},
			wantErr: true,
		},
		{
			name: "nan sentinel",
			spec: ParameterSpec{DecodeFloat32, 0, YawResponse},
			data: payload(func(d []byte) {
				binary.BigEndian.PutUint32(d[4:8], math.Float32bits(float32(math.NaN())))
			}),
			wantErr: true,
		},
		{
			name:    "scaled without scale",
			spec:    ParameterSpec{DecodeScaled, 0, RoverGNSS},
			data:    payload(nil),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFrame(uint32(ParamYawPosition), tt.data, Incoming)
			got, err := DecodeParameter(ParamYawPosition, tt.spec, f)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeParameter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var decErr *DecodeError
				if !errors.As(err, &decErr) {
					t.Errorf("DecodeParameter() error = %v, want DecodeError", err)
				}
				return
			}
			if got.Kind() != tt.want.Kind() {
				t.Errorf("Kind() = %v, want %v", got.Kind(), tt.want.Kind())
			}
			if math.Abs(got.Float64()-tt.want.Float64()) > 1e-9 {
				t.Errorf("Float64() = %v, want %v", got.Float64(), tt.want.Float64())
			}
		})
	}
}

func TestWatchdogFrame(t *testing.T) {
	f := encodeWatchdog(watchdogMain, ParamYawPosition, 20*time.Millisecond)
	if f.Identifier != watchdogIdentifier {
		t.Errorf("Identifier = %d, want %d", f.Identifier, watchdogIdentifier)
	}
	want := []byte{0x01, 0x0C, 0x05, 0x00, 0x05, 0x17, 0x00, 0x14}
	if !bytes.Equal(f.Data, want) {
		t.Errorf("Data = [% X], want [% X]", f.Data, want)
	}
}

func TestWatchdogFrameClamp(t *testing.T) {
	f := encodeWatchdog(watchdogRover, ParamRoverHeading, 90*time.Second)
	if got := binary.BigEndian.Uint16(f.Data[6:8]); got != math.MaxUint16 {
		t.Errorf("interval = %d, want %d", got, math.MaxUint16)
	}
	f = encodeWatchdog(watchdogBase, ParamBaseLatitude, 0)
	if got := binary.BigEndian.Uint16(f.Data[6:8]); got != 0 {
		t.Errorf("interval = %d, want 0", got)
	}
}

func FuzzDecodeParameter(f *testing.F) {
	f.Add(uint8(0), []byte{0, 0x02, 0, 0, 0x42, 0x34, 0, 0})
	f.Add(uint8(3), []byte{0, 0, 0, 0, 0, 0x44, 0xD2, 0x10})
	f.Add(uint8(4), []byte{})
	f.Add(uint8(9), []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	f.Fuzz(func(t *testing.T, kind uint8, data []byte) {
		spec := ParameterSpec{Decode: DecodeKind(kind), Scale: 100, Class: States}
		fr := NewFrame(uint32(ParamYawPosition), data, Incoming)
		v, err := DecodeParameter(ParamYawPosition, spec, fr)
		if err == nil && v.Kind() == KindNone {
			t.Errorf("decode returned the zero value without an error")
		}
	})
}
