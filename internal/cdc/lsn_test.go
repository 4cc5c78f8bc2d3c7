package cdc

import "testing"

func TestParseLSN(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantHi  uint64
		wantLo  uint64
		wantErr bool
	}{
		{"simple", "0/16B3748", 0, 0x16B3748, false},
		{"both nonzero", "1A/FF", 0x1A, 0xFF, false},
		{"missing slash", "016B3748", 0, 0, true},
		{"non-hex", "0/zzzz", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hi, lo, err := ParseLSN(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if hi != tt.wantHi || lo != tt.wantLo {
				t.Fatalf("ParseLSN(%q) = (%x, %x), want (%x, %x)", tt.in, hi, lo, tt.wantHi, tt.wantLo)
			}
		})
	}
}

// "0/9" must compare less than "0/10" even though it does not
// lexicographically; LSN comparison must parse both hex halves as
// integers rather than compare the raw strings.
func TestCompareLSNHexWidthSharpEdge(t *testing.T) {
	c, err := CompareLSN("0/9", "0/10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c >= 0 {
		t.Fatalf("CompareLSN(0/9, 0/10) = %d, want < 0", c)
	}
	if !LSNLess("0/9", "0/10") {
		t.Fatal("LSNLess(0/9, 0/10) = false, want true")
	}
}

func TestCompareLSNAcrossHighWord(t *testing.T) {
	c, err := CompareLSN("0/FFFFFFFF", "1/0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c >= 0 {
		t.Fatalf("CompareLSN(0/FFFFFFFF, 1/0) = %d, want < 0", c)
	}
}

func TestCompareLSNEqual(t *testing.T) {
	c, err := CompareLSN("0/100", "0/100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != 0 {
		t.Fatalf("CompareLSN equal = %d, want 0", c)
	}
}

func TestLSNLessMalformedIsFalse(t *testing.T) {
	if LSNLess("garbage", "0/1") {
		t.Fatal("LSNLess with malformed input should be false")
	}
}
