// SPDX-License-Identifier: MIT
/*
Package visual computes the rendered attributes of the audio-reactive scene:
a particle field, a bar field and a morphing mesh.

Every component is updated once per animation frame with the elapsed time,
the frame's frequency buffer and the activation flag. Components never fail
on the shape of their input: short buffers wrap, empty buffers read as
silence and non-finite values are clamped. They are not safe for
concurrent use; the scene serializes updates.
*/
package visual

import (
	"fmt"
	"strings"

	"ambience/internal/log"
)

var logger = log.New("visual")

// MobileBreakpoint is the viewport width below which a device is constrained.
const MobileBreakpoint = 768

// Tier selects counts and framing for the rendering device.
type Tier int

const (
	Desktop Tier = iota
	Mobile
)

func (t Tier) String() string {
	if t == Mobile {
		return "mobile"
	}
	return "desktop"
}

// ParseTier accepts "desktop" or "mobile".
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(s) {
	case "desktop":
		return Desktop, nil
	case "mobile":
		return Mobile, nil
	default:
		return Desktop, fmt.Errorf("unknown tier %q", s)
	}
}

// TierForWidth maps a viewport width to a tier.
func TierForWidth(width int) Tier {
	if width > 0 && width < MobileBreakpoint {
		return Mobile
	}
	return Desktop
}
