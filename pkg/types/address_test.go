package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAddress_IsZero(t *testing.T) {
	var zero Address
	if !zero.IsZero() {
		t.Error("zero-value Address should be zero")
	}

	nonZero := Address{0x01}
	if nonZero.IsZero() {
		t.Error("non-zero Address should not be zero")
	}
}

func TestAddress_String(t *testing.T) {
	var a Address
	a[0] = 0xab
	a[19] = 0xcd
	s := a.String()
	if !strings.HasPrefix(s, "0xab") {
		t.Errorf("String() should start with '0xab', got %s", s)
	}
	if !strings.HasSuffix(s, "cd") {
		t.Errorf("String() should end with 'cd', got %s", s)
	}
	if len(s) != 2+2*AddressSize {
		t.Errorf("String() length = %d, want %d", len(s), 2+2*AddressSize)
	}
	if a.Hex() != s[2:] {
		t.Errorf("Hex() = %s, want %s", a.Hex(), s[2:])
	}
}

func TestParseAddress(t *testing.T) {
	raw := "8f3a44b8056cafec368d2e1a9b0c7d6e5f4a3b2c"
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"raw hex", raw, false},
		{"prefixed", "0x" + raw, false},
		{"upper prefix", "0X" + raw, false},
		{"empty", "", true},
		{"too short", "0xabcd", true},
		{"bad hex", "0x" + strings.Repeat("z", 40), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAddress(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseAddress(%q) should fail", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAddress(%q): %v", tt.input, err)
			}
			if a.Hex() != raw {
				t.Errorf("got %s, want %s", a.Hex(), raw)
			}
		})
	}
}

func TestAddress_JSON(t *testing.T) {
	a := Address{0x8f, 0x3a, 0x44}
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.HasPrefix(string(data), `"0x8f3a44`) {
		t.Errorf("unexpected JSON %s", data)
	}

	var got Address
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != a {
		t.Errorf("got %s, want %s", got, a)
	}
}

func TestActionType_Valid(t *testing.T) {
	if !ActionTransaction.Valid() || !ActionDeployAccount.Valid() {
		t.Error("known action types should be valid")
	}
	if ActionType("SIGN_MESSAGE").Valid() {
		t.Error("unknown action type should be invalid")
	}
	if ActionType("").Valid() {
		t.Error("empty action type should be invalid")
	}
}
