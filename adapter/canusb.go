package adapter

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/albenik/bcd"
	"github.com/avast/retry-go"
	"github.com/roffe/gotcc"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
)

func init() {
	if err := Register(&AdapterInfo{
		Name:               "CANUSB",
		Description:        "Lawicel CANUSB",
		RequiresSerialPort: true,
		New:                NewCanusb,
	}); err != nil {
		panic(err)
	}
}

// Acceptance filter wide open; the driver discards frames it has no
// mapping for.
const (
	acceptanceCode = "M00000000"
	acceptanceMask = "mFFFFFFFF"
)

type Canusb struct {
	BaseAdapter
	port    serial.Port
	canRate string

	wmu       sync.Mutex
	closeOnce sync.Once
}

func NewCanusb(cfg *gotcc.AdapterConfig) (gotcc.Adapter, error) {
	cu := &Canusb{
		BaseAdapter: NewBaseAdapter("CANUSB", cfg),
	}
	if err := cu.setCANrate(cfg.BitRate); err != nil {
		return nil, err
	}
	return cu, nil
}

func (cu *Canusb) Init(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: cu.cfg.PortBaudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(cu.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("failed to open com port %q : %v", cu.cfg.Port, err)
	}
	p.SetReadTimeout(2 * time.Millisecond)
	cu.port = p

	delay := time.Duration(2147483647 / mode.BaudRate)
	if delay > (100 * time.Millisecond) {
		delay = 100 * time.Millisecond
	}

	// Close any channel left open by a previous run before touching the
	// configuration.
	for _, c := range []string{"C", "", ""} {
		if _, err := p.Write([]byte(c + "\r")); err != nil {
			p.Close()
			return err
		}
		time.Sleep(delay)
	}

	err = retry.Do(func() error {
		return cu.probe(ctx, p)
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.OnRetry(func(n uint, err error) {
			cu.cfg.OnError(fmt.Errorf("retry #%d: %w", n, err))
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		p.Close()
		return err
	}

	cmds := []string{
		"Z0",       // timestamps off
		cu.canRate, // bit rate
		acceptanceCode,
		acceptanceMask,
		"O", // open the CAN channel
	}
	for _, c := range cmds {
		if _, err := p.Write([]byte(c + "\r")); err != nil {
			p.Close()
			return err
		}
		time.Sleep(delay)
	}

	p.ResetOutputBuffer()
	p.ResetInputBuffer()

	go cu.recvManager(ctx)
	go cu.statusManager(ctx)

	return nil
}

// probe asks for the version string until the adapter answers. A CANUSB
// that was power cycled mid frame needs a few tries before it talks again.
func (cu *Canusb) probe(ctx context.Context, p serial.Port) error {
	p.ResetInputBuffer()
	start := time.Now()
	errg, _ := errgroup.WithContext(ctx)
	errg.Go(func() error {
		readbuff := make([]byte, 16)
		buff := bytes.NewBuffer(nil)
		for time.Since(start) < 300*time.Millisecond {
			n, err := p.Read(readbuff)
			if err != nil {
				if err == io.EOF {
					break
				}
				return err
			}
			if n == 0 {
				continue
			}
			for _, b := range readbuff[:n] {
				if b == '\r' {
					if buff.Len() == 0 {
						continue
					}
					if buff.Bytes()[0] == 'V' {
						if v, err := decodeVersion(buff.Bytes()); err == nil {
							cu.cfg.OnMessage(v)
						}
						return nil
					}
					buff.Reset()
					continue
				}
				buff.WriteByte(b)
			}
		}
		return errors.New("no response to version probe")
	})
	p.Write([]byte("V\r"))
	return errg.Wait()
}

func (cu *Canusb) setCANrate(rate float64) error {
	switch rate {
	case 10:
		cu.canRate = "S0"
	case 20:
		cu.canRate = "S1"
	case 50:
		cu.canRate = "S2"
	case 100:
		cu.canRate = "S3"
	case 125:
		cu.canRate = "S4"
	case 250:
		cu.canRate = "S5"
	case 500:
		cu.canRate = "S6"
	case 800:
		cu.canRate = "S7"
	case 1000:
		cu.canRate = "S8"
	default:
		return fmt.Errorf("unknown rate: %f", rate)
	}
	return nil
}

// Send writes the frame in Lawicel ASCII form, tiiildd..[CR].
func (cu *Canusb) Send(f *gotcc.CANFrame) error {
	idb := make([]byte, 4)
	binary.BigEndian.PutUint32(idb, f.Identifier)
	out := "t" + hex.EncodeToString(idb)[5:] + strconv.Itoa(f.DLC()) + hex.EncodeToString(f.Data) + "\r"
	cu.wmu.Lock()
	defer cu.wmu.Unlock()
	if _, err := cu.port.Write([]byte(out)); err != nil {
		return fmt.Errorf("failed to write to com port: %s, %w", out, err)
	}
	if cu.cfg.Debug {
		fmt.Fprint(os.Stderr, ">> "+out+"\n")
	}
	return nil
}

func (cu *Canusb) Close() error {
	var err error
	cu.closeOnce.Do(func() {
		if cu.port == nil {
			cu.CloseBase()
			return
		}
		cu.wmu.Lock()
		cu.port.Write([]byte("C\r"))
		cu.wmu.Unlock()
		time.Sleep(50 * time.Millisecond)
		cu.CloseBase()
		time.Sleep(10 * time.Millisecond)
		cu.port.ResetInputBuffer()
		cu.port.ResetOutputBuffer()
		err = cu.port.Close()
	})
	return err
}

// statusManager polls the adapter status register so bus faults surface
// even while no frames flow.
func (cu *Canusb) statusManager(ctx context.Context) {
	t := time.NewTicker(600 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			cu.wmu.Lock()
			cu.port.Write([]byte{'F', '\r'})
			cu.wmu.Unlock()
		case <-ctx.Done():
			return
		case <-cu.closeChan:
			return
		}
	}
}

func (cu *Canusb) recvManager(ctx context.Context) {
	buff := bytes.NewBuffer(nil)
	readBuffer := make([]byte, 16)
	for {
		select {
		case <-ctx.Done():
			return
		case <-cu.closeChan:
			return
		default:
		}
		n, err := cu.port.Read(readBuffer)
		if err != nil {
			select {
			case <-cu.closeChan:
			default:
				var portError *serial.PortError
				if errors.As(err, &portError) {
					cu.SetError(errors.New(portError.EncodedErrorString()))
				} else {
					cu.SetError(fmt.Errorf("failed to read com port: %w", err))
				}
			}
			return
		}
		if n == 0 {
			continue
		}
		cu.parse(buff, readBuffer[:n])
	}
}

func (cu *Canusb) parse(buff *bytes.Buffer, readBuffer []byte) {
	for _, b := range readBuffer {
		if b == 0x07 { // bell, sent alone when the last command was bad
			cu.SetError(errors.New("adapter rejected command"))
			continue
		}
		if b != 0x0D {
			buff.WriteByte(b)
			continue
		}
		if buff.Len() == 0 {
			continue
		}
		by := buff.Bytes()
		if cu.cfg.Debug {
			fmt.Fprint(os.Stderr, "<< "+buff.String()+"\n")
		}
		switch by[0] {
		case 'F':
			if err := decodeStatus(by); err != nil {
				cu.cfg.OnError(fmt.Errorf("CAN status error: %w", err))
			}
		case 't':
			f, err := decodeFrame(by)
			if err != nil {
				cu.cfg.OnError(fmt.Errorf("failed to decode frame: %X", by))
				break
			}
			cu.Deliver(f)
		case 'z': // transmit ack
		case 'V':
			if v, err := decodeVersion(by); err == nil {
				cu.cfg.OnMessage(v)
			} else {
				cu.cfg.OnMessage(buff.String())
			}
		case 'N':
			cu.cfg.OnMessage("H/W serial " + buff.String())
		default:
			cu.cfg.OnMessage("Unknown>> " + buff.String())
		}
		buff.Reset()
	}
}

/*
Status register bits, see the SJA1000 datasheet:
Bit 0 CAN receive FIFO queue full
Bit 1 CAN transmit FIFO queue full
Bit 2 Error warning (EI)
Bit 3 Data Overrun (DOI)
Bit 4 Not used
Bit 5 Error Passive (EPI)
Bit 6 Arbitration Lost (ALI)
Bit 7 Bus Error (BEI)
*/

func decodeStatus(b []byte) error {
	if len(b) < 3 {
		return fmt.Errorf("short status response %q", b)
	}
	bs, err := strconv.ParseUint(string(b[1:3]), 16, 8)
	if err != nil {
		return fmt.Errorf("malformed status response %q", b)
	}
	switch {
	case bs&0x01 != 0:
		return errors.New("CAN receive FIFO queue full")
	case bs&0x02 != 0:
		return errors.New("CAN transmit FIFO queue full")
	case bs&0x04 != 0:
		return errors.New("error warning (EI)")
	case bs&0x08 != 0:
		return errors.New("data overrun (DOI)")
	case bs&0x20 != 0:
		return errors.New("error passive (EPI)")
	case bs&0x40 != 0:
		return errors.New("arbitration lost (ALI)")
	case bs&0x80 != 0:
		return errors.New("bus error (BEI)")
	}
	return nil
}

// decodeVersion unpacks Vhhss where hh and ss are the BCD coded hardware
// and software versions.
func decodeVersion(b []byte) (string, error) {
	if len(b) != 5 {
		return "", fmt.Errorf("malformed version response %q", b)
	}
	raw, err := hex.DecodeString(string(b[1:]))
	if err != nil {
		return "", fmt.Errorf("malformed version response %q", b)
	}
	return fmt.Sprintf("CANUSB H/W v%d S/W v%d", bcd.ToUint16(raw[:1]), bcd.ToUint16(raw[1:])), nil
}

func decodeFrame(buff []byte) (*gotcc.CANFrame, error) {
	if len(buff) < 5 {
		return nil, fmt.Errorf("frame too short: %q", buff)
	}
	id, err := strconv.ParseUint(string(buff[1:4]), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to decode identifier: %v", err)
	}
	msgLen, err := strconv.Atoi(string(buff[4]))
	if err != nil {
		return nil, fmt.Errorf("failed to decode message length: %v", err)
	}
	if msgLen > 8 || len(buff) < 5+msgLen*2 {
		return nil, fmt.Errorf("frame length %d does not match payload: %q", msgLen, buff)
	}
	data, err := hex.DecodeString(string(buff[5 : 5+(msgLen*2)]))
	if err != nil {
		return nil, fmt.Errorf("failed to decode body: %v", err)
	}
	return gotcc.NewFrame(uint32(id), data, gotcc.Incoming), nil
}
