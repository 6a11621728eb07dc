package identity

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		name           string
		host           string
		port           int
		domain         string
		wantAddress    string
		wantWeb        string
	}{
		{"no domain", "1.2.3.4", 6881, "", "1.2.3.4:6881", "1.2.3.4:6881"},
		{"with domain", "0.0.0.0", 6881, "relay.example.com", "0.0.0.0:6881", "relay.example.com:6881"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := New(tt.host, tt.port, tt.domain)
			if n.Address != tt.wantAddress {
				t.Errorf("Address = %q, want %q", n.Address, tt.wantAddress)
			}
			if n.Web != tt.wantWeb {
				t.Errorf("Web = %q, want %q", n.Web, tt.wantWeb)
			}
			if n.ID != SHA1Hex(tt.wantAddress) {
				t.Errorf("ID = %q, want sha1(%q)", n.ID, tt.wantAddress)
			}
		})
	}
}

func TestSHA1Hex(t *testing.T) {
	// a digest is 40 hex characters and the same on every call
	got := SHA1Hex("127.0.0.1:6881")
	if len(got) != 40 {
		t.Fatalf("expected 40 hex chars, got %d (%q)", len(got), got)
	}
	if got != SHA1Hex("127.0.0.1:6881") {
		t.Fatalf("SHA1Hex is not deterministic")
	}
}
