package cache

import (
	"testing"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid-redis", "redis://localhost:6379", false},
		{"valid-with-db", "redis://localhost:6379/0", false},
		{"empty", "", true},
		{"wrong-scheme", "http://localhost:6379", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewClient_SetsTimeouts(t *testing.T) {
	client, err := NewClient("redis://localhost:6379/2")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	opts := client.Options()
	if opts.DB != 2 {
		t.Errorf("DB = %d, want 2", opts.DB)
	}
	if opts.ReadTimeout.Seconds() != 3 {
		t.Errorf("ReadTimeout = %v, want 3s", opts.ReadTimeout)
	}
}

func TestKey(t *testing.T) {
	if got := Key("progress", "abc"); got != "learn:progress:abc" {
		t.Errorf("Key() = %q, want learn:progress:abc", got)
	}
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	ctx := t.Context()
	_, err := New(ctx, "redis://localhost:59999")
	if err == nil {
		t.Fatal("New() should return error for unreachable host")
	}
}
