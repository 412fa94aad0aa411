package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client identity constants. The version pin tracks the newest desktop build
// the envelope layout was verified against.
const (
	clientVersion   = "1.3.9"
	deviceType      = "desktop"
	clientUserAgent = "connect-es/1.6.1"
	defaultTimezone = "America/New_York"

	// tokenDelimiter separates the session-blob prefix from the bearer
	// token inside stored access tokens.
	tokenDelimiter = "::"

	// checksumSeed is the rolling cipher's initial key.
	checksumSeed byte = 165
)

var (
	// ErrEmptyAccessToken reports a token that is empty after prefix
	// stripping.
	ErrEmptyAccessToken = errors.New("cursor: empty access token")

	// ErrMissingMachineID reports credentials without a machine id.
	ErrMissingMachineID = errors.New("cursor: missing machine id")
)

// CleanToken strips the "::"-delimited prefix from a stored access token.
func CleanToken(raw string) string {
	if i := strings.Index(raw, tokenDelimiter); i >= 0 {
		return raw[i+len(tokenDelimiter):]
	}
	return raw
}

// Checksum derives the x-cursor-checksum value for machineID at the given
// time. The cipher runs over a 6-byte big-endian array of the coarse
// timestamp unit (milliseconds divided by 1e6): byte i becomes
// ((byte[i] XOR key) + i mod 256) mod 256 with the key tracking each new
// byte, seeded at 165. The result is base64url-encoded without padding and
// the raw machine id is appended.
func Checksum(machineID string, at time.Time) string {
	coarse := uint64(at.UnixMilli()) / 1_000_000

	// The desktop client computes the top two bytes with integer division
	// rather than shifts; keep the same arithmetic.
	var b [6]byte
	b[0] = byte(coarse / (1 << 40))
	b[1] = byte(coarse / (1 << 32))
	b[2] = byte(coarse >> 24)
	b[3] = byte(coarse >> 16)
	b[4] = byte(coarse >> 8)
	b[5] = byte(coarse)

	key := checksumSeed
	for i := range b {
		b[i] = (b[i] ^ key) + byte(i%256)
		key = b[i]
	}

	return base64.RawURLEncoding.EncodeToString(b[:]) + machineID
}

// BuildStreamHeaders derives the header set for the duplex chat transport.
// It is a pure function of the credentials and the current time; every call
// gets fresh nonces.
func BuildStreamHeaders(creds Credentials) (http.Header, error) {
	h, err := buildBaseHeaders(creds, time.Now())
	if err != nil {
		return nil, err
	}
	h.Set("content-type", "application/connect+proto")
	h.Set("connect-protocol-version", "1")
	return h, nil
}

// BuildJSONHeaders derives the header set for the vendor's plain JSON
// endpoints (model listing).
func BuildJSONHeaders(creds Credentials) (http.Header, error) {
	h, err := buildBaseHeaders(creds, time.Now())
	if err != nil {
		return nil, err
	}
	h.Set("content-type", "application/json")
	h.Set("accept", "application/json")
	return h, nil
}

func buildBaseHeaders(creds Credentials, now time.Time) (http.Header, error) {
	token := CleanToken(creds.AccessToken)
	if token == "" {
		return nil, ErrEmptyAccessToken
	}
	if creds.MachineID == "" {
		return nil, ErrMissingMachineID
	}

	digest := sha256.Sum256([]byte(token))
	clientKey := hex.EncodeToString(digest[:])

	h := http.Header{}
	h.Set("authorization", "Bearer "+token)
	h.Set("x-cursor-checksum", Checksum(creds.MachineID, now))
	h.Set("x-client-key", clientKey)
	h.Set("x-session-id", clientKey[:36])
	h.Set("x-cursor-client-version", clientVersion)
	h.Set("x-cursor-timezone", defaultTimezone)
	h.Set("x-cursor-platform", platformName())
	h.Set("x-cursor-arch", archName())
	h.Set("x-cursor-device-type", deviceType)
	h.Set("x-ghost-mode", strconv.FormatBool(creds.GhostMode))
	h.Set("x-request-id", uuid.NewString())
	h.Set("x-amzn-trace-id", "Root="+uuid.NewString())
	h.Set("x-cursor-config-version", uuid.NewString())
	h.Set("user-agent", clientUserAgent)
	return h, nil
}

// platformName maps GOOS onto the OS family names the upstream expects.
func platformName() string {
	switch runtime.GOOS {
	case "darwin":
		return "darwin"
	case "windows":
		return "win32"
	default:
		return "linux"
	}
}

// archName maps GOARCH onto the upstream's architecture names.
func archName() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x64"
	case "arm64":
		return "arm64"
	default:
		return runtime.GOARCH
	}
}
