//go:build !linux

package switchio

import (
	"context"
	"errors"

	"github.com/fitzterra/battery-capacity-meter/internal/bcfsm"
)

// Real is not available on non-Linux platforms.
type Real struct{}

// NewReal returns an error on non-Linux platforms.
func NewReal(lines map[int]Lines) (*Real, error) {
	return nil, errors.New("switchio: not supported on this platform (requires Linux)")
}

func (r *Real) Set(context.Context, int, bcfsm.Leg, bool) error {
	return errors.New("switchio: not supported")
}

func (r *Real) SetMonitors(context.Context, int, bool) error {
	return errors.New("switchio: not supported")
}

func (r *Real) Close() error { return nil }
