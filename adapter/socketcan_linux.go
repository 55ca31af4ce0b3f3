package adapter

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/roffe/gotcc"
	"go.einride.tech/can"
	"go.einride.tech/can/pkg/candevice"
	"go.einride.tech/can/pkg/socketcan"
)

func init() {
	for _, dev := range FindDevices() {
		if err := Register(&AdapterInfo{
			Name:               "SocketCAN " + dev,
			Description:        "Linux SocketCAN device",
			RequiresSerialPort: false,
			New:                NewSocketCANFromDevName(dev),
		}); err != nil {
			panic(err)
		}
	}
}

type SocketCAN struct {
	BaseAdapter
	d    *candevice.Device
	conn net.Conn
	tx   *socketcan.Transmitter
	rx   *socketcan.Receiver
}

func NewSocketCANFromDevName(dev string) func(cfg *gotcc.AdapterConfig) (gotcc.Adapter, error) {
	return func(cfg *gotcc.AdapterConfig) (gotcc.Adapter, error) {
		cfg.Port = dev
		return NewSocketCAN(cfg)
	}
}

func NewSocketCAN(cfg *gotcc.AdapterConfig) (gotcc.Adapter, error) {
	return &SocketCAN{
		BaseAdapter: NewBaseAdapter("SocketCAN "+cfg.Port, cfg),
	}, nil
}

func (a *SocketCAN) Init(ctx context.Context) error {
	d, err := candevice.New(a.cfg.Port)
	if err != nil {
		return err
	}
	if err := d.SetBitrate(uint32(a.cfg.BitRate * 1000)); err != nil {
		return err
	}
	if err := d.SetUp(); err != nil {
		return err
	}
	a.d = d

	conn, err := socketcan.DialContext(ctx, "can", a.cfg.Port)
	if err != nil {
		d.SetDown()
		return err
	}
	a.conn = conn
	a.tx = socketcan.NewTransmitter(conn)
	a.rx = socketcan.NewReceiver(conn)

	go a.recvManager(ctx)
	return nil
}

func (a *SocketCAN) Send(f *gotcc.CANFrame) error {
	frame := can.Frame{
		ID:         f.Identifier,
		Length:     uint8(f.DLC()),
		IsExtended: f.Extended,
		IsRemote:   f.RTR,
	}
	copy(frame.Data[:], f.Data)
	if err := a.tx.TransmitFrame(context.Background(), frame); err != nil {
		return fmt.Errorf("socketcan transmit: %w", err)
	}
	return nil
}

func (a *SocketCAN) Close() error {
	a.CloseBase()
	if a.conn != nil {
		a.conn.Close()
	}
	if a.d != nil {
		a.d.SetDown()
	}
	return nil
}

func (a *SocketCAN) recvManager(ctx context.Context) {
	for a.rx.Receive() {
		select {
		case <-ctx.Done():
			return
		case <-a.closeChan:
			return
		default:
		}
		f := a.rx.Frame()
		a.Deliver(gotcc.NewFrame(f.ID, f.Data[:f.Length], gotcc.Incoming))
	}
	if err := a.rx.Err(); err != nil {
		a.SetError(fmt.Errorf("socketcan receive: %w", err))
	}
}

// FindDevices lists the CAN network interfaces present on the host.
func FindDevices() (dev []string) {
	iFaces, _ := net.Interfaces()
	for _, i := range iFaces {
		if strings.Contains(i.Name, "can") {
			dev = append(dev, i.Name)
		}
	}
	return
}
