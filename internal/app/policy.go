package app

import (
	"fmt"

	"github.com/MeBadDev/GDWeb/internal/core"
	"github.com/MeBadDev/GDWeb/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a recipient whose send queue is full.
type Policy interface {
	OnBackPressure(room domain.RoomID, member *core.Session) BackpressureAction
}

// KickPolicy disconnects the slow member. Other members are unaffected.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(domain.RoomID, *core.Session) BackpressureAction {
	return KickMember
}

// DropPolicy loses the frame for the slow member and keeps it connected.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.RoomID, *core.Session) BackpressureAction {
	return DropFrame
}

// PolicyByName maps the relay.slow_policy setting to a Policy.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return KickPolicy{}, nil
	case "drop":
		return DropPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown slow policy %q", name)
}
