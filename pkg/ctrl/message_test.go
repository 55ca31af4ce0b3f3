package ctrl

import (
	"bytes"
	"testing"
)

func TestMessageMarshal(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want []byte
	}{
		{
			name: "command",
			msg:  func() Message { m := Message{Type: TypeCommand, Arg: 1300}; m.SetFloat(45); return m }(),
			want: []byte{0x01, 0x05, 0x14, 0x42, 0x34, 0x00, 0x00, 0x00},
		},
		{
			name: "set timeout",
			msg:  Message{Type: TypeSetTimeout, Arg: 1, Value: 50},
			want: []byte{0x04, 0x00, 0x01, 0x00, 0x00, 0x00, 0x32, 0x00},
		},
		{
			name: "stale parameter response",
			msg:  Message{Type: TypeGetParameter, Arg: 1303, Status: StatusStale},
			want: []byte{0x02, 0x05, 0x17, 0x00, 0x00, 0x00, 0x00, 0x01},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.msg.Marshal()
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("Marshal() = % X, want % X", got, tt.want)
			}
			var back Message
			if err := back.Unmarshal(got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if back != tt.msg {
				t.Errorf("round trip = %+v, want %+v", back, tt.msg)
			}
		})
	}
}

func TestMessageUnmarshalLength(t *testing.T) {
	var m Message
	if err := m.Unmarshal([]byte{0x01, 0x02}); err == nil {
		t.Error("short message accepted")
	}
	if err := m.Unmarshal(make([]byte, 9)); err == nil {
		t.Error("long message accepted")
	}
}
