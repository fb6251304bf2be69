package address

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Address
		wantErr bool
	}{
		{
			name:  "lowercase",
			input: "0x0000000000000000000000000000000000001234",
			want:  "0x0000000000000000000000000000000000001234",
		},
		{
			name:  "mixed case normalized",
			input: "0xABCDEFabcdef0123456789ABCDEFabcdef012345",
			want:  "0xabcdefabcdef0123456789abcdefabcdef012345",
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  0xabcdefabcdef0123456789abcdefabcdef012345\n",
			want:  "0xabcdefabcdef0123456789abcdefabcdef012345",
		},
		{name: "missing prefix", input: "abcdefabcdef0123456789abcdefabcdef012345", wantErr: true},
		{name: "too short", input: "0xabc", wantErr: true},
		{name: "too long", input: "0xabcdefabcdef0123456789abcdefabcdef0123456", wantErr: true},
		{name: "non hex", input: "0xzzcdefabcdef0123456789abcdefabcdef012345", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAddress) {
					t.Fatalf("Parse(%q): got err %v, want ErrInvalidAddress", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): unexpected error %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestCaseVariantsAreEqual(t *testing.T) {
	upper := "0xABCDEFABCDEF0123456789ABCDEFABCDEF012345"
	lower := "0xabcdefabcdef0123456789abcdefabcdef012345"

	if !Equal(upper, lower) {
		t.Error("case variants should be equal")
	}
	if MustParse(upper) != MustParse(lower) {
		t.Error("case variants should parse to the same canonical address")
	}
}

func TestChecksum(t *testing.T) {
	a := MustParse("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	if got, want := a.Checksum(), "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"; got != want {
		t.Errorf("Checksum() = %s, want %s", got, want)
	}
}

func TestShort(t *testing.T) {
	a := MustParse("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	if got, want := a.Short(), "0x5aae...eaed"; got != want {
		t.Errorf("Short() = %s, want %s", got, want)
	}
}
