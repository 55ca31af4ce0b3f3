// Package capture writes bus traffic to disk and reads it back. Records
// are CBOR encoded back to back, so captures stream without an index and
// stay readable when truncated at a record boundary.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/roffe/gotcc"
)

// Record is one captured frame. Offset is the time since the start of
// the capture in microseconds.
type Record struct {
	Offset   int64  `cbor:"o"`
	Incoming bool   `cbor:"i"`
	ID       uint32 `cbor:"id"`
	Data     []byte `cbor:"d"`
}

func (r *Record) Frame() *gotcc.CANFrame {
	dir := gotcc.Outgoing
	if r.Incoming {
		dir = gotcc.Incoming
	}
	return gotcc.NewFrame(r.ID, r.Data, dir)
}

// A Writer appends frames to a capture stream. Safe for concurrent use;
// the driver's frame hook calls it from the receive loop.
type Writer struct {
	mu    sync.Mutex
	enc   *cbor.Encoder
	out   io.Writer
	start time.Time
	n     int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		enc:   cbor.NewEncoder(w),
		out:   w,
		start: time.Now(),
	}
}

func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture: %w", err)
	}
	return NewWriter(f), nil
}

func (w *Writer) WriteFrame(f *gotcc.CANFrame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	rec := Record{
		Offset:   time.Since(w.start).Microseconds(),
		Incoming: f.Direction == gotcc.Incoming,
		ID:       f.Identifier,
		Data:     f.Data,
	}
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("write capture record: %w", err)
	}
	w.n++
	return nil
}

// Count reports how many records have been written so far.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

func (w *Writer) Close() error {
	if c, ok := w.out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// A Reader iterates over a capture stream in file order.
type Reader struct {
	dec *cbor.Decoder
	in  io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{
		dec: cbor.NewDecoder(r),
		in:  r,
	}
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	return NewReader(f), nil
}

// Next returns the following record, or io.EOF past the last one.
func (r *Reader) Next() (*Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read capture record: %w", err)
	}
	return &rec, nil
}

func (r *Reader) Close() error {
	if c, ok := r.in.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
