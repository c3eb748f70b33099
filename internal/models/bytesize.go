package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ByteSize is a raw byte count with a human-readable presentation.
// Scaling is base-1000: a value stays in its unit while below 1000,
// then promotes to the next one, rounded to two decimals.
type ByteSize int64

const bytesPerGigabyte = 1000 * 1000 * 1000

var sizeUnits = []string{"bytes", "kb", "mb", "gb", "tb"}

func (b ByteSize) String() string {
	v := float64(b)
	unit := 0
	for v >= 1000 && unit < len(sizeUnits)-1 {
		v /= 1000
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%d %s", int64(v), sizeUnits[0])
	}
	return fmt.Sprintf("%.2f %s", v, sizeUnits[unit])
}

// Gigabytes converts a GB figure (the unit admin settings are stored in)
// into a byte count.
func Gigabytes(gb float64) ByteSize {
	return ByteSize(gb * bytesPerGigabyte)
}

var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*(bytes|b|kb|mb|gb|tb)?\s*$`)

// ParseByteSize reads a formatted size string such as "12.34 kb" back into a
// byte count. It exists for rows written by earlier versions that stored the
// rendered string instead of the raw count.
func ParseByteSize(s string) (ByteSize, error) {
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("unparseable size %q", s)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable size %q: %w", s, err)
	}
	mult := float64(1)
	switch strings.ToLower(m[2]) {
	case "", "b", "bytes":
	case "kb":
		mult = 1000
	case "mb":
		mult = 1000 * 1000
	case "gb":
		mult = bytesPerGigabyte
	case "tb":
		mult = 1000 * bytesPerGigabyte
	}
	return ByteSize(n * mult), nil
}
