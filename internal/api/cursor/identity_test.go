package cursor

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCleanToken(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare token", "eyJhbGciOi.token", "eyJhbGciOi.token"},
		{"prefixed token", "user_01ABC::eyJhbGciOi.token", "eyJhbGciOi.token"},
		{"leading delimiter", "::tok", "tok"},
		{"delimiter only", "::", ""},
		{"second delimiter kept", "a::b::c", "b::c"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanToken(tt.input); got != tt.want {
				t.Errorf("CleanToken(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestChecksum_Golden(t *testing.T) {
	// coarse unit 0: the cipher over six zero bytes with seed 165 yields
	// [165 166 168 171 175 180]
	got := Checksum("m", time.UnixMilli(0))
	if got != "paaoq6-0m" {
		t.Fatalf("Checksum() = %q, want %q", got, "paaoq6-0m")
	}
}

func TestChecksum_StableWithinCoarseUnit(t *testing.T) {
	machineID := "4f2a6c1b9e8d"
	a := Checksum(machineID, time.UnixMilli(1))
	b := Checksum(machineID, time.UnixMilli(999_999))
	if a != b {
		t.Errorf("checksums differ inside one coarse unit: %q vs %q", a, b)
	}

	c := Checksum(machineID, time.UnixMilli(1_000_000))
	if a == c {
		t.Errorf("checksum did not change across coarse units")
	}
}

func TestChecksum_Shape(t *testing.T) {
	machineID := "aabbccddeeff00112233"
	got := Checksum(machineID, time.Now())

	// 6 cipher bytes encode to exactly 8 unpadded base64url characters
	if len(got) != 8+len(machineID) {
		t.Fatalf("len = %d, want %d", len(got), 8+len(machineID))
	}
	if !strings.HasSuffix(got, machineID) {
		t.Errorf("checksum does not end with the raw machine id")
	}
	if strings.ContainsAny(got[:8], "+/=") {
		t.Errorf("prefix %q is not unpadded base64url", got[:8])
	}
}

func TestBuildStreamHeaders(t *testing.T) {
	creds := Credentials{
		AccessToken: "user_01ABC::secret-token",
		MachineID:   "machine-1234",
		GhostMode:   true,
	}

	h, err := BuildStreamHeaders(creds)
	if err != nil {
		t.Fatalf("BuildStreamHeaders() error = %v", err)
	}

	if got := h.Get("authorization"); got != "Bearer secret-token" {
		t.Errorf("authorization = %q", got)
	}
	if got := h.Get("content-type"); got != "application/connect+proto" {
		t.Errorf("content-type = %q", got)
	}
	if got := h.Get("connect-protocol-version"); got != "1" {
		t.Errorf("connect-protocol-version = %q", got)
	}
	if got := h.Get("x-ghost-mode"); got != "true" {
		t.Errorf("x-ghost-mode = %q", got)
	}

	digest := sha256.Sum256([]byte("secret-token"))
	wantKey := hex.EncodeToString(digest[:])
	if got := h.Get("x-client-key"); got != wantKey {
		t.Errorf("x-client-key = %q, want %q", got, wantKey)
	}
	if got := h.Get("x-session-id"); got != wantKey[:36] {
		t.Errorf("x-session-id = %q, want first 36 of client key", got)
	}

	if got := h.Get("x-cursor-checksum"); !strings.HasSuffix(got, "machine-1234") {
		t.Errorf("x-cursor-checksum = %q, want machine id suffix", got)
	}
	if h.Get("x-request-id") == "" {
		t.Errorf("x-request-id missing")
	}
	if got := h.Get("x-amzn-trace-id"); !strings.HasPrefix(got, "Root=") {
		t.Errorf("x-amzn-trace-id = %q", got)
	}
	if got := h.Get("user-agent"); got != "connect-es/1.6.1" {
		t.Errorf("user-agent = %q", got)
	}
}

func TestBuildJSONHeaders(t *testing.T) {
	creds := Credentials{AccessToken: "tok", MachineID: "mid"}

	h, err := BuildJSONHeaders(creds)
	if err != nil {
		t.Fatalf("BuildJSONHeaders() error = %v", err)
	}
	if got := h.Get("content-type"); got != "application/json" {
		t.Errorf("content-type = %q", got)
	}
	if got := h.Get("accept"); got != "application/json" {
		t.Errorf("accept = %q", got)
	}
	if h.Get("connect-protocol-version") != "" {
		t.Errorf("connect-protocol-version set on JSON headers")
	}
}

func TestBuildStreamHeaders_Errors(t *testing.T) {
	_, err := BuildStreamHeaders(Credentials{AccessToken: "prefix::", MachineID: "mid"})
	if !errors.Is(err, ErrEmptyAccessToken) {
		t.Errorf("empty cleaned token: error = %v, want ErrEmptyAccessToken", err)
	}

	_, err = BuildStreamHeaders(Credentials{AccessToken: "tok"})
	if !errors.Is(err, ErrMissingMachineID) {
		t.Errorf("missing machine id: error = %v, want ErrMissingMachineID", err)
	}
}
