package meter

import "testing"

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		b0   byte
		b1   byte
		want float64
	}{
		{"zero", 0x00, 0x00, 30.0},
		{"low byte only", 0x64, 0x00, 40.0},     // 100 * 0.1 + 30
		{"high bits", 0x00, 0x01, 55.6},         // 256 * 0.1 + 30
		{"max", 0xFF, 0x03, 132.3},              // (255 + 768) * 0.1 + 30
		{"high byte masked", 0x64, 0xFC, 40.0},  // bits above 0x03 ignored
		{"mask keeps low bits", 0x00, 0xFF, 106.8}, // 0xFF & 0x03 = 3
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, usbReadSize)
			buf[0], buf[1] = tt.b0, tt.b1
			if got := Decode(buf); got != tt.want {
				t.Errorf("Decode(%#x, %#x) = %v, want %v", tt.b0, tt.b1, got, tt.want)
			}
		})
	}
}

func TestRound1(t *testing.T) {
	if got := round1(55.649); got != 55.6 {
		t.Errorf("round1(55.649) = %v, want 55.6", got)
	}
	if got := round1(55.65); got != 55.7 {
		t.Errorf("round1(55.65) = %v, want 55.7", got)
	}
}

func TestParseUSBID(t *testing.T) {
	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{"16c0", 0x16c0, false},
		{"0x16c0", 0x16c0, false},
		{" 05dc ", 0x05dc, false},
		{"", 0, true},
		{"zzzz", 0, true},
	}

	for _, tt := range tests {
		got, err := parseUSBID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseUSBID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseUSBID(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}
