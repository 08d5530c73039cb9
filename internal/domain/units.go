package domain

import (
	"fmt"
	"math"
	"strconv"
)

// UnitScale is the number of micro-units in one reward unit.
const UnitScale = 1_000_000

// Units is a fixed-point reward quantity counted in micro-units.
type Units int64

func WholeUnits(n int64) Units {
	return Units(n * UnitScale)
}

// Whole truncates to whole reward units, the way the compact view shows them.
func (u Units) Whole() int64 {
	return int64(u) / UnitScale
}

func (u Units) Float64() float64 {
	return float64(u) / UnitScale
}

func (u Units) String() string {
	sign := ""
	v := int64(u)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%06d", sign, v/UnitScale, v%UnitScale)
}

func (u Units) MarshalJSON() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *Units) UnmarshalJSON(b []byte) error {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("units: %w", err)
	}
	*u = Units(math.Round(f * UnitScale))
	return nil
}
