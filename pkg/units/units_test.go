package units

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAmount_ToMinorUint64_Sol(t *testing.T) {
	tests := []struct {
		in   Amount
		want uint64
	}{
		{"1", 1_000_000_000},
		{"0.5", 500_000_000},
		{"0.000000001", 1},
		{"2.25", 2_250_000_000},
		{"1e-3", 1_000_000},
	}
	for _, tt := range tests {
		got, err := tt.in.ToMinorUint64(SolDecimals)
		if err != nil {
			t.Fatalf("ToMinorUint64(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ToMinorUint64(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAmount_ToMinor_NoFloatDrift(t *testing.T) {
	// 0.1 + float multiplication would give 100000000000000010 on some paths.
	got, err := Amount("0.1").ToMinor(EtherDecimals)
	if err != nil {
		t.Fatalf("ToMinor() error: %v", err)
	}
	if got.String() != "100000000000000000" {
		t.Errorf("ToMinor(0.1 ETH) = %s", got)
	}
}

func TestAmount_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   Amount
		want error
	}{
		{"empty", "", ErrInvalidAmount},
		{"garbage", "abc", ErrInvalidAmount},
		{"sub-lamport", "0.0000000001", ErrFractionalUnit},
		{"zero", "0", ErrNonPositive},
		{"negative", "-1", ErrNonPositive},
		{"overflow", "100000000000", ErrOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.in.ToMinorUint64(SolDecimals)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAmount_UnmarshalJSON(t *testing.T) {
	var v struct {
		A Amount `json:"amount"`
		B Amount `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"amount": 1.5, "b": "0.25"}`), &v); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if v.A != "1.5" || v.B != "0.25" {
		t.Errorf("decoded = %q, %q", v.A, v.B)
	}
	if err := json.Unmarshal([]byte(`{"amount": true}`), &v); err == nil {
		t.Error("boolean amount should fail to decode")
	}
}

func TestParseBig(t *testing.T) {
	v, err := ParseBig("0x10")
	if err != nil || v.Int64() != 16 {
		t.Errorf("ParseBig(0x10) = %v, %v", v, err)
	}
	v, err = ParseBig("21000")
	if err != nil || v.Int64() != 21000 {
		t.Errorf("ParseBig(21000) = %v, %v", v, err)
	}
	if v, err := ParseBig(""); v != nil || err != nil {
		t.Errorf("ParseBig(\"\") = %v, %v", v, err)
	}
	if _, err := ParseBig("-5"); err == nil {
		t.Error("ParseBig(-5) should fail")
	}
}
