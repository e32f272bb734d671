package pipe

import (
	"bytes"
	"errors"
	"os"
	"testing"
)

func TestCaptureRoundTrip(t *testing.T) {
	// 超过内核管道缓冲，迫使收集与写入并发推进
	payload := make([]byte, 256<<10)
	for i := range payload {
		payload[i] = byte(i)
	}

	got, err := Capture(int64(len(payload)), func(w *os.File) error {
		_, err := w.Write(payload)
		return err
	})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Capture() returned %d bytes, want %d intact", len(got), len(payload))
	}
}

func TestCaptureOverLimit(t *testing.T) {
	payload := make([]byte, 128<<10)

	_, err := Capture(1024, func(w *os.File) error {
		_, err := w.Write(payload)
		return err
	})
	if err == nil {
		t.Fatal("Capture() accepted payload over the limit")
	}
}

func TestCaptureFillError(t *testing.T) {
	sentinel := errors.New("fill failed")

	_, err := Capture(1024, func(w *os.File) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("Capture() error = %v, want %v", err, sentinel)
	}
}

func TestCaptureEmpty(t *testing.T) {
	got, err := Capture(1024, func(w *os.File) error { return nil })
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Capture() = %d bytes, want none", len(got))
	}
}
