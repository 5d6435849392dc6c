package serialio

import (
	"testing"
	"time"

	"go.bug.st/serial"
)

func TestPortOptions_Normalize_Defaults(t *testing.T) {
	got, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.BaudRate != 9600 {
		t.Errorf("BaudRate = %d, want 9600", got.BaudRate)
	}
	if got.DataBits != 8 {
		t.Errorf("DataBits = %d, want 8", got.DataBits)
	}
	if got.StopBits != 1 {
		t.Errorf("StopBits = %d, want 1", got.StopBits)
	}
	if got.Parity != "N" {
		t.Errorf("Parity = %q, want %q", got.Parity, "N")
	}
	if got.ReadTimeout != 100*time.Millisecond {
		t.Errorf("ReadTimeout = %v, want 100ms", got.ReadTimeout)
	}
}

func TestPortOptions_Normalize_DefaultPortOptionsUnchanged(t *testing.T) {
	want := DefaultPortOptions()
	got, err := want.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got != want {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}
}

func TestPortOptions_Normalize_Invalid(t *testing.T) {
	cases := map[string]PortOptions{
		"baud":         {BaudRate: 12345},
		"data bits":    {DataBits: 9},
		"stop bits":    {StopBits: 3},
		"parity":       {Parity: "M"},
		"read timeout": {ReadTimeout: -time.Second},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := opts.Normalize(); err == nil {
				t.Errorf("expected error for %+v", opts)
			}
		})
	}
}

func TestPortOptions_Normalize_ParityVariations(t *testing.T) {
	cases := map[string]string{
		"none": "N", "NONE": "N", " n ": "N",
		"even": "E", "E": "E",
		"odd": "O", "o": "O",
	}
	for in, want := range cases {
		got, err := PortOptions{Parity: in}.Normalize()
		if err != nil {
			t.Errorf("Normalize(%q) error = %v", in, err)
			continue
		}
		if got.Parity != want {
			t.Errorf("Normalize(%q).Parity = %q, want %q", in, got.Parity, want)
		}
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := DefaultPortOptions().SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	if mode.BaudRate != 9600 || mode.DataBits != 8 {
		t.Errorf("mode = %+v, want 9600 baud 8 data bits", mode)
	}
	if mode.Parity != serial.NoParity {
		t.Errorf("Parity = %v, want NoParity", mode.Parity)
	}
	if mode.StopBits != serial.OneStopBit {
		t.Errorf("StopBits = %v, want OneStopBit", mode.StopBits)
	}

	mode, err = PortOptions{Parity: "E", StopBits: 2}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	if mode.Parity != serial.EvenParity {
		t.Errorf("Parity = %v, want EvenParity", mode.Parity)
	}
	if mode.StopBits != serial.TwoStopBits {
		t.Errorf("StopBits = %v, want TwoStopBits", mode.StopBits)
	}

	if _, err := (PortOptions{Parity: "X"}).SerialMode(); err == nil {
		t.Error("expected error for invalid parity")
	}
}

func TestOpenPort_InvalidPath(t *testing.T) {
	port, err := OpenPort("/dev/nonexistent-serial-port-12345", DefaultPortOptions())
	if err == nil {
		port.Close()
		t.Fatal("expected error when opening non-existent serial port")
	}
}

func TestOpenPort_InvalidOptions(t *testing.T) {
	if _, err := OpenPort("/dev/null", PortOptions{DataBits: 4}); err == nil {
		t.Fatal("expected options error before opening the port")
	}
}
