package serialio

import (
	"errors"
	"testing"
	"time"
)

func TestTestableSerialPort_ReadWrite(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte("test data"))

	buf := make([]byte, 100)
	n, err := port.Read(buf)
	if err != nil {
		t.Errorf("Read returned error: %v", err)
	}
	if string(buf[:n]) != "test data" {
		t.Errorf("Read returned %q, expected %q", string(buf[:n]), "test data")
	}

	n, err = port.Write([]byte("write data"))
	if err != nil {
		t.Errorf("Write returned error: %v", err)
	}
	if n != len("write data") {
		t.Errorf("Write returned %d, expected %d", n, len("write data"))
	}
	if port.ReadCalls != 1 || port.WriteCalls != 1 {
		t.Errorf("calls = %d reads, %d writes; want 1, 1", port.ReadCalls, port.WriteCalls)
	}
}

func TestTestableSerialPort_EmptyReadIsTimeout(t *testing.T) {
	port := NewTestableSerialPort()
	n, err := port.Read(make([]byte, 4))
	if n != 0 || err != nil {
		t.Errorf("Read on empty buffer = (%d, %v), want (0, nil)", n, err)
	}
}

func TestTestableSerialPort_Errors(t *testing.T) {
	port := NewTestableSerialPort()

	port.ReadError = errors.New("read error")
	if _, err := port.Read(make([]byte, 10)); err == nil || err.Error() != "read error" {
		t.Errorf("Expected 'read error', got: %v", err)
	}
	port.AddReadData([]byte("x"))
	if _, err := port.Read(make([]byte, 10)); err != nil {
		t.Errorf("Expected no error after error cleared, got: %v", err)
	}

	port.WriteError = errors.New("write error")
	if _, err := port.Write([]byte("test")); err == nil || err.Error() != "write error" {
		t.Errorf("Expected 'write error', got: %v", err)
	}

	port.CloseError = errors.New("close error")
	if err := port.Close(); err == nil || err.Error() != "close error" {
		t.Errorf("Expected 'close error', got: %v", err)
	}
}

func TestTestableSerialPort_Closed(t *testing.T) {
	port := NewTestableSerialPort()
	port.Close()

	if _, err := port.Read(make([]byte, 10)); err == nil {
		t.Error("Expected error reading from closed port")
	}
	if _, err := port.Write([]byte("test")); err == nil {
		t.Error("Expected error writing to closed port")
	}
}

func TestTestableSerialPort_Responder(t *testing.T) {
	port := NewTestableSerialPort()
	port.Responder = func(written []byte) []byte {
		return append([]byte("echo:"), written...)
	}
	port.Write([]byte("V"))

	buf := make([]byte, 16)
	n, _ := port.Read(buf)
	if got := string(buf[:n]); got != "echo:V" {
		t.Errorf("Read = %q, want %q", got, "echo:V")
	}
}

func TestTestableSerialPort_SetReadTimeout(t *testing.T) {
	port := NewTestableSerialPort()
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		t.Errorf("SetReadTimeout returned error: %v", err)
	}
	if port.ReadTimeout != 100*time.Millisecond {
		t.Errorf("Expected timeout 100ms, got %v", port.ReadTimeout)
	}
}

func TestTestableSerialPort_Reset(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte("test"))
	port.Write([]byte("write"))
	port.ReadError = errors.New("error")
	port.Close()

	port.Reset()

	if port.ReadCalls != 0 || port.WriteCalls != 0 {
		t.Errorf("calls not reset: %d reads, %d writes", port.ReadCalls, port.WriteCalls)
	}
	if port.Closed {
		t.Error("Expected port not closed")
	}
	if port.ReadError != nil {
		t.Error("Expected errors to be nil")
	}
	if port.ReadBuffer.Len() != 0 || port.WriteBuffer.Len() != 0 {
		t.Error("Expected buffers to be empty")
	}
}
