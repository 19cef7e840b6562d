// SPDX-License-Identifier: MIT
package audio

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alice-iceberg/SoundFeatures/pkg/utils"
)

const (
	testSampleRate = 11025
	testFrameSize  = 512
)

func TestRecordingStartStop(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "nested", "test_recording.wav")

	rec, err := StartRecording(filename, testSampleRate, 16, testFrameSize, 4)
	if err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}

	if atomic.LoadInt32(&rec.isRecording) != 1 {
		t.Error("Recorder should be in recording state")
	}
	if rec.sampleBuf.Format.NumChannels != 1 {
		t.Errorf("Buffer channels mismatch: got %d, want 1", rec.sampleBuf.Format.NumChannels)
	}
	if rec.sampleBuf.Format.SampleRate != testSampleRate {
		t.Errorf("Buffer sample rate mismatch: got %d, want %d", rec.sampleBuf.Format.SampleRate, testSampleRate)
	}
	if rec.Path() != filename {
		t.Errorf("Path() = %q, want %q", rec.Path(), filename)
	}

	outputFile := rec.outputFile

	if err := rec.Close(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}
	if atomic.LoadInt32(&rec.isRecording) != 0 {
		t.Error("Recorder should not be in recording state after Close")
	}
	if err := outputFile.Close(); err == nil {
		t.Error("File should already be closed")
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		t.Error("Recording file was not created")
	}

	// Close is idempotent.
	if err := rec.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestRecordingErrorCases(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		desc          string
		filename      string
		bitDepth      int
		expectError   bool
		errorContains string
	}{
		{"Unsupported bit depth", filepath.Join(dir, "a.wav"), 12, true, "bit depth"},
		{"Invalid path", "/dev/null/file.wav", 16, true, ""},
		{"Valid 24 bit", filepath.Join(dir, "b.wav"), 24, false, ""},
		{"Valid 32 bit", filepath.Join(dir, "c.wav"), 32, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			rec, err := StartRecording(tt.filename, testSampleRate, tt.bitDepth, testFrameSize, 2)
			if err == nil {
				_ = rec.Close()
			}

			if tt.expectError && err == nil {
				t.Errorf("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if tt.errorContains != "" && err != nil && !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Error %q does not contain %q", err.Error(), tt.errorContains)
			}
		})
	}
}

func TestRecordingRoundTrip(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "sine.wav")
	rec, err := StartRecording(filename, testSampleRate, 16, testFrameSize, 8)
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	signal := utils.GenerateSineWave(4*testFrameSize, testSampleRate, 440)
	for i := 0; i < len(signal); i += testFrameSize {
		rec.Write(signal[i : i+testFrameSize])
		// Let the encoder keep up so nothing is dropped.
		deadline := time.Now().Add(time.Second)
		for len(rec.chunks) > 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if rec.Dropped() != 0 {
		t.Fatalf("dropped %d chunks", rec.Dropped())
	}

	got := readAll(t, filename, testSampleRate)
	if len(got) != len(signal) {
		t.Fatalf("read %d samples, want %d", len(got), len(signal))
	}
	for i := range signal {
		if d := got[i] - signal[i]; d > 1e-3 || d < -1e-3 {
			t.Fatalf("sample %d = %f, want %f", i, got[i], signal[i])
		}
	}
}

func TestRecordingDropsWhenFull(t *testing.T) {
	rec, err := StartRecording(filepath.Join(t.TempDir(), "drop.wav"), testSampleRate, 16, testFrameSize, 1)
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	defer rec.Close()

	chunk := make([]float32, testFrameSize)
	done := make(chan struct{})
	go func() {
		for range 1000 {
			rec.Write(chunk)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Write blocked on a full queue")
	}
}

func TestRecordingTap(t *testing.T) {
	rec, err := StartRecording(filepath.Join(t.TempDir(), "tap.wav"), testSampleRate, 16, testFrameSize, 4)
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	defer rec.Close()

	var calls int
	deliver := rec.Tap(func(samples []float32, at time.Time) {
		calls++
	})
	deliver(make([]float32, testFrameSize), time.Now())
	if calls != 1 {
		t.Errorf("next called %d times, want 1", calls)
	}
}

func TestRecordingFileName(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	if got := RecordingFileName(at); got != "recording-09-03-2024-140506.wav" {
		t.Errorf("RecordingFileName = %q", got)
	}
}

func BenchmarkRecordingWrite(b *testing.B) {
	rec, _ := StartRecording(filepath.Join(b.TempDir(), "bench.wav"), testSampleRate, 16, testFrameSize, 64)
	defer rec.Close()
	chunk := utils.GenerateSineWave(testFrameSize, testSampleRate, 440)

	b.ReportAllocs()
	for b.Loop() {
		rec.Write(chunk)
	}
}
