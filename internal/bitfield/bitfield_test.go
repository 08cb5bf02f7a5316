package bitfield

import "testing"

type testFlags struct {
	Present  bool   `bitfield:",1"`
	Writable bool   `bitfield:",1"`
	User     bool   `bitfield:",1"`
	Reserved uint32 `bitfield:",29"`
}

func TestPackUnpackRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		flags testFlags
	}{
		{"all clear", testFlags{}},
		{"present only", testFlags{Present: true}},
		{"present and writable", testFlags{Present: true, Writable: true}},
		{"user with reserved bits", testFlags{Present: true, User: true, Reserved: 0x1234}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packed, err := Pack(tt.flags, &Config{NumBits: 32})
			if err != nil {
				t.Fatalf("Pack: %v", err)
			}

			var got testFlags
			if err := Unpack(&got, packed); err != nil {
				t.Fatalf("Unpack: %v", err)
			}

			if got != tt.flags {
				t.Errorf("round trip mismatch: got %+v, want %+v", got, tt.flags)
			}
		})
	}
}

func TestPackOverflow(t *testing.T) {
	type oneBit struct {
		Flag uint32 `bitfield:",1"`
	}

	_, err := Pack(oneBit{Flag: 2}, &Config{NumBits: 1})
	if err == nil {
		t.Fatal("expected overflow error, got nil")
	}
}
