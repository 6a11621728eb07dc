package config

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		c       Config
		wantErr bool
	}{
		{"missing host", Config{Hashes: []string{"abc"}}, true},
		{"missing hashes", Config{Host: "0.0.0.0"}, true},
		{"valid", Config{Host: "0.0.0.0", Hashes: []string{"abc"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
