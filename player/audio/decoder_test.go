package audio

import (
	"io"
	"testing"
	"time"
)

func TestProbe_RejectsGarbage(t *testing.T) {
	inputs := map[string][]byte{
		"text":  []byte("this is definitely not an mp3 stream"),
		"zeros": make([]byte, 4096),
	}
	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			if _, err := parseHeader(data); err == nil {
				t.Error("Expected parseHeader to fail")
			}
		})
	}
}

func TestPCMReader_WaitsForData(t *testing.T) {
	buf := newPCMBuffer()
	r := buf.reader()

	got := make(chan []byte, 1)
	go func() {
		p := make([]byte, 16)
		n, _ := r.Read(p)
		got <- p[:n]
	}()

	select {
	case <-got:
		t.Fatal("Read returned before any data was decoded")
	case <-time.After(20 * time.Millisecond):
	}

	buf.append([]byte{1, 2, 3, 4})

	select {
	case p := <-got:
		if len(p) != 4 {
			t.Errorf("Expected 4 bytes, got %d", len(p))
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not wake after append")
	}
}

func TestPCMReader_EOFAfterFinish(t *testing.T) {
	buf := newPCMBuffer()
	buf.append([]byte{1, 2, 3, 4})
	buf.finish(nil)

	r := buf.reader()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(data) != 4 {
		t.Errorf("Expected 4 bytes, got %d", len(data))
	}
	if !r.exhausted() {
		t.Error("Reader should be exhausted")
	}
}

func TestPCMReader_CloseUnblocks(t *testing.T) {
	buf := newPCMBuffer()
	r := buf.reader()

	done := make(chan error, 1)
	go func() {
		_, err := r.Read(make([]byte, 8))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	buf.close()

	select {
	case err := <-done:
		if err != io.EOF {
			t.Errorf("Expected EOF after close, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock after close")
	}
}

func TestCompleteBuffer(t *testing.T) {
	buf := newCompleteBuffer([]byte{1, 2, 3, 4})
	pcm, ok := buf.complete()
	if !ok || len(pcm) != 4 {
		t.Errorf("Expected complete buffer of 4 bytes, got %d (%v)", len(pcm), ok)
	}
}

func TestDurationConversions(t *testing.T) {
	if d := bytesToDuration(int64(24000*BytesPerFrame), 24000); d != time.Second {
		t.Errorf("Expected 1s, got %v", d)
	}
	if n := durationToBytes(500*time.Millisecond, 24000); n != int64(12000*BytesPerFrame) {
		t.Errorf("Expected %d bytes, got %d", 12000*BytesPerFrame, n)
	}
	if d := bytesToDuration(100, 0); d != 0 {
		t.Errorf("Expected 0 for unknown rate, got %v", d)
	}
}
