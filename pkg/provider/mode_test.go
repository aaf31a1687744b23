package provider

import "testing"

func TestParseOperationalMode(t *testing.T) {
	tests := []struct {
		input   string
		want    OperationalMode
		wantErr bool
	}{
		{input: "", want: ModeManaged},
		{input: "managed", want: ModeManaged},
		{input: "MANAGED", want: ModeManaged},
		{input: "Authoritative", want: ModeAuthoritative},
		{input: "additive", want: ModeAdditive},
		{input: " additive\t", want: ModeAdditive},
		{input: "aggressive", wantErr: true},
		{input: "manged", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseOperationalMode(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseOperationalMode(%q): expected error, got %q", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseOperationalMode(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOperationalMode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestOperationalModePolicy(t *testing.T) {
	tests := []struct {
		mode           OperationalMode
		valid          bool
		allowsDelete   bool
		needsOwnership bool
	}{
		{ModeManaged, true, true, true},
		{ModeAuthoritative, true, true, false},
		{ModeAdditive, true, false, false},
		{OperationalMode(""), false, true, true}, // zero value behaves like managed
		{OperationalMode("bogus"), false, true, false},
	}

	for _, tt := range tests {
		if got := tt.mode.IsValid(); got != tt.valid {
			t.Errorf("%q.IsValid() = %v, want %v", tt.mode, got, tt.valid)
		}
		if got := tt.mode.AllowsDelete(); got != tt.allowsDelete {
			t.Errorf("%q.AllowsDelete() = %v, want %v", tt.mode, got, tt.allowsDelete)
		}
		if got := tt.mode.RequiresOwnership(); got != tt.needsOwnership {
			t.Errorf("%q.RequiresOwnership() = %v, want %v", tt.mode, got, tt.needsOwnership)
		}
	}
}

func TestOperationalModeString(t *testing.T) {
	for _, m := range ValidModes {
		if m.String() != string(m) {
			t.Errorf("%q.String() = %q", m, m.String())
		}
	}
}
