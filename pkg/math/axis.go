// Package math provides the integer geometry helpers shared by the level
// model, the binary codec and the splitter.
package math

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAxis is returned for axis names other than X, Y and Z.
var ErrInvalidAxis = errors.New("invalid axis")

// Axis identifies a coordinate axis. The numeric values match the on-disk
// BSP node axis codes.
type Axis uint8

// Axis constants.
const (
	AxisX Axis = 0
	AxisY Axis = 1
	AxisZ Axis = 2
)

// String returns "X", "Y" or "Z".
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	default:
		return fmt.Sprintf("Axis(%d)", uint8(a))
	}
}

// Valid reports whether a is one of X, Y or Z.
func (a Axis) Valid() bool {
	return a <= AxisZ
}

// ParseAxis parses a case-insensitive axis name.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "X":
		return AxisX, nil
	case "Y":
		return AxisY, nil
	case "Z":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("%w %q: should be X, Y, or Z", ErrInvalidAxis, s)
}
