package adapter

import (
	"context"

	"github.com/roffe/gotcc"
)

// Template is the starting point for a new transport. Copy it, fill in the
// device specifics and add a Register call in an init function.
type Template struct {
	BaseAdapter
}

var _ gotcc.Adapter = (*Template)(nil)

func NewTemplate(cfg *gotcc.AdapterConfig) (gotcc.Adapter, error) {
	return &Template{
		BaseAdapter: NewBaseAdapter("Template", cfg),
	}, nil
}

func (a *Template) Init(ctx context.Context) error {
	return nil
}

func (a *Template) Send(f *gotcc.CANFrame) error {
	return nil
}

func (a *Template) Close() error {
	a.CloseBase()
	return nil
}
