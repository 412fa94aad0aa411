package cursor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte(""),
		[]byte("x"),
		[]byte("Hello"),
		bytes.Repeat([]byte{0x00, 0xff, 0x7f}, 1000),
		EncodeResponseText("streamed delta"),
	}

	for _, payload := range payloads {
		for _, compress := range []bool{false, true} {
			framed := WrapFrame(payload, compress)

			flag, wirePayload, rest, ok, err := SplitFrame(framed)
			if err != nil {
				t.Fatalf("SplitFrame() error = %v", err)
			}
			if !ok {
				t.Fatalf("SplitFrame() ok = false for a complete frame")
			}
			if len(rest) != 0 {
				t.Errorf("SplitFrame() left %d trailing bytes", len(rest))
			}

			wantFlag := FlagNone
			if compress {
				wantFlag = FlagGzip
			}
			if flag != wantFlag {
				t.Errorf("flag = %#x, want %#x", flag, wantFlag)
			}

			got, err := Decompress(wirePayload, flag)
			if err != nil {
				t.Fatalf("Decompress() error = %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(payload))
			}
		}
	}
}

func TestSplitFrame_Incomplete(t *testing.T) {
	frame := WrapFrame([]byte("incomplete"), false)

	// every proper prefix must report "need more bytes", not an error
	for cut := 0; cut < len(frame); cut++ {
		_, _, rest, ok, err := SplitFrame(frame[:cut])
		if err != nil {
			t.Fatalf("SplitFrame(prefix %d) error = %v", cut, err)
		}
		if ok {
			t.Fatalf("SplitFrame(prefix %d) ok = true, want false", cut)
		}
		if !bytes.Equal(rest, frame[:cut]) {
			t.Fatalf("SplitFrame(prefix %d) did not preserve the buffer", cut)
		}
	}
}

func TestSplitFrame_TrailingBytes(t *testing.T) {
	first := WrapFrame([]byte("one"), false)
	second := WrapFrame([]byte("two"), false)
	buf := append(append([]byte{}, first...), second...)

	_, payload, rest, ok, err := SplitFrame(buf)
	if err != nil || !ok {
		t.Fatalf("SplitFrame() = ok %v, err %v", ok, err)
	}
	if string(payload) != "one" {
		t.Errorf("payload = %q, want %q", payload, "one")
	}
	if !bytes.Equal(rest, second) {
		t.Errorf("rest is not the second frame")
	}
}

func TestSplitFrame_OversizedLength(t *testing.T) {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint32(header[1:5], maxFramePayload+1)

	_, _, _, _, err := SplitFrame(header)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("SplitFrame() error = %v, want ErrFrameTooLarge", err)
	}
}

func TestDecompress_GzipFamilyFlags(t *testing.T) {
	framed := WrapFrame([]byte("gzip payload"), true)
	_, compressed, _, ok, _ := SplitFrame(framed)
	if !ok {
		t.Fatal("SplitFrame() failed")
	}

	// all three gzip-family flags inflate identically
	for _, flag := range []byte{FlagGzip, FlagGzipAlt, FlagGzipBoth} {
		got, err := Decompress(compressed, flag)
		if err != nil {
			t.Fatalf("Decompress(flag %#x) error = %v", flag, err)
		}
		if string(got) != "gzip payload" {
			t.Errorf("Decompress(flag %#x) = %q", flag, got)
		}
	}
}

func TestDecompress_UnknownFlagPassthrough(t *testing.T) {
	payload := []byte{0x08, 0x01, 0xfe}
	got, err := Decompress(payload, 0x42)
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("unknown flag modified the payload")
	}
}

func TestDecompress_JSONErrorSniff(t *testing.T) {
	// uncompressed JSON error bodies show up with gzip flags set; the
	// leading {" wins over the flag
	body := []byte(`{"error":"resource_exhausted"}`)
	for _, flag := range []byte{FlagNone, FlagGzip, FlagGzipAlt, FlagGzipBoth} {
		got, err := Decompress(body, flag)
		if err != nil {
			t.Fatalf("Decompress(flag %#x) error = %v", flag, err)
		}
		if !bytes.Equal(got, body) {
			t.Errorf("Decompress(flag %#x) rewrote a JSON body", flag)
		}
	}
}

func TestDecompress_GzipFlagWithoutMagic(t *testing.T) {
	payload := []byte("plain text despite the flag")
	got, err := Decompress(payload, FlagGzip)
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload without gzip magic was modified")
	}
}
