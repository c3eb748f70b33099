package models

import "testing"

func TestByteSizeString(t *testing.T) {
	cases := []struct {
		in   ByteSize
		want string
	}{
		{0, "0 bytes"},
		{999, "999 bytes"},
		{1000, "1.00 kb"},
		{1536, "1.54 kb"},
		{999999, "1000.00 kb"},
		{2500000, "2.50 mb"},
		{1000 * 1000 * 1000, "1.00 gb"},
		{5 * 1000 * 1000 * 1000, "5.00 gb"},
		{3 * 1000 * 1000 * 1000 * 1000, "3.00 tb"},
	}
	for _, c := range cases {
		if got := c.in.String(); got != c.want {
			t.Errorf("ByteSize(%d).String() = %q, want %q", int64(c.in), got, c.want)
		}
	}
}

func TestGigabytes(t *testing.T) {
	if got := Gigabytes(5); got != 5_000_000_000 {
		t.Fatalf("Gigabytes(5) = %d", int64(got))
	}
	if got := Gigabytes(0.5); got != 500_000_000 {
		t.Fatalf("Gigabytes(0.5) = %d", int64(got))
	}
}

func TestParseByteSize(t *testing.T) {
	cases := []struct {
		in   string
		want ByteSize
	}{
		{"0 bytes", 0},
		{"999 bytes", 999},
		{"42", 42},
		{"1.00 kb", 1000},
		{"2.50 mb", 2500000},
		{"5.00 GB", 5_000_000_000},
		{"  1.5 tb ", 1_500_000_000_000},
	}
	for _, c := range cases {
		got, err := ParseByteSize(c.in)
		if err != nil {
			t.Errorf("ParseByteSize(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseByteSize(%q) = %d, want %d", c.in, int64(got), int64(c.want))
		}
	}

	if _, err := ParseByteSize("lots"); err == nil {
		t.Error("expected error for unparseable input")
	}
}

func TestByteSizeRoundTrip(t *testing.T) {
	// Values survive render-then-parse within rounding error of the two
	// decimal places kept by String.
	for _, v := range []ByteSize{0, 12, 999, 1000, 123456, 987654321} {
		parsed, err := ParseByteSize(v.String())
		if err != nil {
			t.Fatalf("parse %q: %v", v.String(), err)
		}
		diff := int64(parsed) - int64(v)
		if diff < 0 {
			diff = -diff
		}
		// 0.005 of the promoted unit is the max rounding slack.
		if float64(diff) > 0.005*float64(v)+1 {
			t.Errorf("round trip %d -> %q -> %d", int64(v), v.String(), int64(parsed))
		}
	}
}
