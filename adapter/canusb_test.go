package adapter

import (
	"bytes"
	"testing"

	"github.com/roffe/gotcc"
)

func TestDecodeLawicelFrame(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantID  uint32
		want    []byte
		wantErr bool
	}{
		{
			name:   "telemetry frame",
			in:     "t51780000000042360000",
			wantID: 0x517,
			want:   []byte{0x00, 0x00, 0x00, 0x00, 0x42, 0x36, 0x00, 0x00},
		},
		{
			name:   "single byte frame",
			in:     "t1001FF",
			wantID: 0x100,
			want:   []byte{0xFF},
		},
		{
			name:   "empty frame",
			in:     "t7D00",
			wantID: 0x7D0,
			want:   []byte{},
		},
		{name: "truncated header", in: "t51", wantErr: true},
		{name: "bad identifier", in: "tXYZ8AABBCCDD11223344", wantErr: true},
		{name: "bad length digit", in: "t517XAABBCCDD11223344", wantErr: true},
		{name: "length beyond payload", in: "t5178AABB", wantErr: true},
		{name: "bad body hex", in: "t1001ZZ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := decodeFrame([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if f.Identifier != tt.wantID {
				t.Errorf("Identifier = 0x%03X, want 0x%03X", f.Identifier, tt.wantID)
			}
			if !bytes.Equal(f.Data, tt.want) {
				t.Errorf("Data = % X, want % X", f.Data, tt.want)
			}
			if f.Direction != gotcc.Incoming {
				t.Errorf("Direction = %v, want Incoming", f.Direction)
			}
		})
	}
}

func TestDecodeLawicelStatus(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "all clear", in: "F00"},
		{name: "receive FIFO full", in: "F01", wantErr: true},
		{name: "transmit FIFO full", in: "F02", wantErr: true},
		{name: "error warning", in: "F04", wantErr: true},
		{name: "bus error", in: "F80", wantErr: true},
		{name: "short response", in: "F", wantErr: true},
		{name: "malformed response", in: "FZZ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := decodeStatus([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Errorf("decodeStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestDecodeLawicelVersion(t *testing.T) {
	got, err := decodeVersion([]byte("V1011"))
	if err != nil {
		t.Fatalf("decodeVersion() error = %v", err)
	}
	if want := "CANUSB H/W v10 S/W v11"; got != want {
		t.Errorf("decodeVersion() = %q, want %q", got, want)
	}
	if _, err := decodeVersion([]byte("V10")); err == nil {
		t.Error("short version response accepted")
	}
	if _, err := decodeVersion([]byte("VZZZZ")); err == nil {
		t.Error("malformed version response accepted")
	}
}

func TestCanusbRates(t *testing.T) {
	tests := []struct {
		rate    float64
		want    string
		wantErr bool
	}{
		{rate: 125, want: "S4"},
		{rate: 250, want: "S5"},
		{rate: 500, want: "S6"},
		{rate: 1000, want: "S8"},
		{rate: 123, wantErr: true},
	}
	for _, tt := range tests {
		cu := &Canusb{}
		err := cu.setCANrate(tt.rate)
		if (err != nil) != tt.wantErr {
			t.Errorf("setCANrate(%v) error = %v, wantErr %v", tt.rate, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && cu.canRate != tt.want {
			t.Errorf("setCANrate(%v) = %q, want %q", tt.rate, cu.canRate, tt.want)
		}
	}

	if _, err := NewCanusb(&gotcc.AdapterConfig{BitRate: 77}); err == nil {
		t.Error("NewCanusb accepted an unknown bit rate")
	}
}
