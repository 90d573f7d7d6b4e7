package mhi

import (
	"bytes"
	"testing"
)

func TestBuildFrame(t *testing.T) {
	got := buildFrame(cmdAddItem, []byte("01"), []byte("Coffee"))
	want := []byte{stx, cmdAddItem, fs, '0', '1', fs, 'C', 'o', 'f', 'f', 'e', 'e', etx}
	if !bytes.Equal(got, want) {
		t.Errorf("buildFrame = % X, want % X", got, want)
	}
}

func TestBuildFrameNoParams(t *testing.T) {
	got := buildFrame(cmdCancelDoc)
	want := []byte{stx, cmdCancelDoc, etx}
	if !bytes.Equal(got, want) {
		t.Errorf("buildFrame = % X, want % X", got, want)
	}
}

func TestBuildFrameEmptyParam(t *testing.T) {
	got := buildFrame(cmdPrepareDoc, []byte("1"), nil, []byte("A"))
	want := []byte{stx, cmdPrepareDoc, fs, '1', fs, fs, 'A', etx}
	if !bytes.Equal(got, want) {
		t.Errorf("buildFrame = % X, want % X", got, want)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want responseClass
	}{
		{"bare ack", []byte{ack}, respAck},
		{"payload answer", []byte{stx, '1', '2', etx, ack}, respAck},
		{"intermediate bel answer", []byte{bel, '0', etx, ack}, respAck},
		{"cancel bel bel ack", []byte{bel, bel, ack}, respAck},
		{"nak", []byte{nak}, respNak},
		{"payload then nak", []byte{stx, '1', etx, nak}, respNak},
		{"empty", nil, respMalformed},
		{"garbage", []byte{'x', 'y'}, respMalformed},
		{"ack without terminated payload", []byte{'1', '2', ack}, respMalformed},
		{"etx ack without stx", []byte{'1', etx, ack}, respMalformed},
	}
	for _, tc := range tests {
		if got := classify(tc.data); got != tc.want {
			t.Errorf("%s: classify(% X) = %v, want %v", tc.name, tc.data, got, tc.want)
		}
	}
}

func TestPayload(t *testing.T) {
	data := []byte{stx, fs, '1', '2', fs, 'a', 'b', fs, etx, ack}
	fields := payload(data)
	if len(fields) != 3 {
		t.Fatalf("payload returned %d fields, want 3", len(fields))
	}
	if string(fields[0]) != "12" || string(fields[1]) != "ab" || string(fields[2]) != "" {
		t.Errorf("payload = %q %q %q", fields[0], fields[1], fields[2])
	}
}

func TestPayloadBareAck(t *testing.T) {
	if fields := payload([]byte{ack}); fields != nil {
		t.Errorf("payload of bare ACK = %v, want nil", fields)
	}
}

func TestEncodeDecimal(t *testing.T) {
	tests := []struct {
		value    string
		decimals int
		want     string
	}{
		{"100.00", 2, "10000"},
		{"2", 3, "2000"},
		{"0.50", 2, "50"},
		{"9.999", 2, "999"},
		{"7", 0, "7"},
		{"", 2, "00"},
	}
	for _, tc := range tests {
		got, err := encodeDecimal(tc.value, tc.decimals)
		if err != nil {
			t.Errorf("encodeDecimal(%q, %d): %v", tc.value, tc.decimals, err)
			continue
		}
		if got != tc.want {
			t.Errorf("encodeDecimal(%q, %d) = %q, want %q", tc.value, tc.decimals, got, tc.want)
		}
	}
}

func TestEncodeDecimalRejectsGarbage(t *testing.T) {
	for _, value := range []string{"-1", "1,50", "abc", "1.2.3"} {
		if _, err := encodeDecimal(value, 2); err == nil {
			t.Errorf("encodeDecimal(%q) accepted garbage", value)
		}
	}
}

func TestDecodeDecimal(t *testing.T) {
	if got := decodeDecimal("8000", 2); got != "80.00" {
		t.Errorf("decodeDecimal(8000, 2) = %q", got)
	}
	if got := decodeDecimal("5", 2); got != "0.05" {
		t.Errorf("decodeDecimal(5, 2) = %q", got)
	}
}

func TestEncodeTextCP850(t *testing.T) {
	got, err := encodeText("Café")
	if err != nil {
		t.Fatalf("encodeText: %v", err)
	}
	want := []byte{'C', 'a', 'f', 0x82} // é in CP850
	if !bytes.Equal(got, want) {
		t.Errorf("encodeText = % X, want % X", got, want)
	}
	if back := decodeText(got); back != "Café" {
		t.Errorf("decodeText = %q", back)
	}
}

func TestPadNumber(t *testing.T) {
	if got := padNumber("42", 6); got != "000042" {
		t.Errorf("padNumber = %q", got)
	}
	if got := padNumber("1234567", 6); got != "234567" {
		t.Errorf("padNumber truncation = %q", got)
	}
}
