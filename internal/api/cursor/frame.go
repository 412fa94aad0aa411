package cursor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// frameHeaderSize is one compression-flag byte plus a big-endian u32 payload
// length.
const frameHeaderSize = 5

// maxFramePayload caps a single frame. A declared length past this is a
// corrupted header, not a real payload.
const maxFramePayload = 64 << 20

// ErrFrameTooLarge reports a frame whose declared length exceeds
// maxFramePayload.
var ErrFrameTooLarge = fmt.Errorf("cursor: frame payload exceeds %d bytes", maxFramePayload)

// WrapFrame wraps payload in the 5-byte frame header, gzip-compressing it
// first when compress is set.
func WrapFrame(payload []byte, compress bool) []byte {
	flag := FlagNone
	if compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write(payload) // writes to bytes.Buffer cannot fail
		_ = zw.Close()
		payload = buf.Bytes()
		flag = FlagGzip
	}

	out := make([]byte, frameHeaderSize, frameHeaderSize+len(payload))
	out[0] = flag
	binary.BigEndian.PutUint32(out[1:5], uint32(len(payload)))
	return append(out, payload...)
}

// SplitFrame slices one complete frame off the front of buf. ok is false when
// buf holds less than a full frame; the caller keeps buf byte-for-byte and
// retries after more data arrives. An oversized declared length is the one
// hard error.
func SplitFrame(buf []byte) (flag byte, payload, rest []byte, ok bool, err error) {
	if len(buf) < frameHeaderSize {
		return 0, nil, buf, false, nil
	}
	length := binary.BigEndian.Uint32(buf[1:5])
	if length > maxFramePayload {
		return 0, nil, buf, false, ErrFrameTooLarge
	}
	total := frameHeaderSize + int(length)
	if len(buf) < total {
		return 0, nil, buf, false, nil
	}
	return buf[0], buf[frameHeaderSize:total], buf[total:], true, nil
}

// Decompress undoes the frame's compression flag. The three gzip-family flag
// values all mean "inflate"; unknown flags pass through untouched. Payloads
// that already look like a JSON object (leading `{"`) are passed through
// regardless of flag: the upstream interleaves uncompressed JSON error
// bodies into otherwise binary streams.
func Decompress(payload []byte, flag byte) ([]byte, error) {
	if isJSONObject(payload) {
		return payload, nil
	}

	switch flag {
	case FlagGzip, FlagGzipAlt, FlagGzipBoth:
		if !hasGzipMagic(payload) {
			// flag says gzip but the bytes disagree; trust the bytes
			return payload, nil
		}
		zr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("open gzip payload: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("inflate payload: %w", err)
		}
		return out, nil
	default:
		return payload, nil
	}
}

func isJSONObject(b []byte) bool {
	return len(b) >= 2 && b[0] == '{' && b[1] == '"'
}

func hasGzipMagic(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b
}
