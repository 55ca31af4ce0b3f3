// Package adapter hosts the CAN transports the driver can talk through.
// Adapters register themselves at init time; importing this package is
// enough to make the built in ones available by name.
package adapter

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/roffe/gotcc"
)

var ErrDroppedFrame = errors.New("adapter dropped frame, receive channel full")

type AdapterInfo struct {
	Name               string
	Description        string
	RequiresSerialPort bool
	New                func(*gotcc.AdapterConfig) (gotcc.Adapter, error)
}

func (a *AdapterInfo) String() string {
	return fmt.Sprintf("%s | %s, requires serial port: %v", a.Name, a.Description, a.RequiresSerialPort)
}

var adapterMap = make(map[string]*AdapterInfo)

func Register(adapter *AdapterInfo) error {
	if _, found := adapterMap[adapter.Name]; found {
		return fmt.Errorf("adapter %s already registered", adapter.Name)
	}
	adapterMap[adapter.Name] = adapter
	return nil
}

// New builds a registered adapter by name. Nil config callbacks are
// replaced with log fallbacks so adapters never have to nil check them.
func New(adapterName string, cfg *gotcc.AdapterConfig) (gotcc.Adapter, error) {
	if cfg.OnMessage == nil {
		cfg.OnMessage = func(msg string) {
			log.Println(msg)
		}
	}
	if cfg.OnError == nil {
		cfg.OnError = func(err error) {
			log.Println(err)
		}
	}
	if adapter, found := adapterMap[adapterName]; found {
		return adapter.New(cfg)
	}
	return nil, fmt.Errorf("unknown adapter %q", adapterName)
}

func ListNames() []string {
	var out []string
	for name := range adapterMap {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

func List() []AdapterInfo {
	var out []AdapterInfo
	for _, adapter := range adapterMap {
		out = append(out, *adapter)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}
