package audio_test

import (
	"testing"
	"time"

	"github.com/MrWong99/realtalk/pkg/audio"
)

func TestEnergy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pcm  []int16
		want float64
	}{
		{name: "empty", pcm: nil, want: 0},
		{name: "silence", pcm: []int16{0, 0, 0, 0}, want: 0},
		{name: "symmetric", pcm: []int16{100, -100, 300, -300}, want: 200},
		{name: "min int16", pcm: []int16{-32768}, want: 32768},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := audio.Energy(tt.pcm); got != tt.want {
				t.Errorf("Energy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBytesRoundTrip(t *testing.T) {
	t.Parallel()
	in := []int16{0, 1, -1, 32767, -32768, 1234}
	got := audio.BytesToInt16(audio.Int16ToBytes(in))
	if len(got) != len(in) {
		t.Fatalf("length: got %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], in[i])
		}
	}
}

func TestBytesToInt16_OddLength(t *testing.T) {
	t.Parallel()
	got := audio.BytesToInt16([]byte{0x01, 0x00, 0xff})
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("got %v, want [1]", got)
	}
}

func TestDownmix(t *testing.T) {
	t.Parallel()
	got := audio.Downmix([]int16{100, 300, -200, -400, 32767, 32767}, 2)
	want := []int16{200, -300, 32767}
	if len(got) != len(want) {
		t.Fatalf("length: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestResample(t *testing.T) {
	t.Parallel()

	same := []int16{1, 2, 3}
	if got := audio.Resample(same, 16000, 16000); &got[0] != &same[0] {
		t.Error("same rate should return input unchanged")
	}

	down := audio.Resample(make([]int16, 480), 48000, 16000)
	if len(down) != 160 {
		t.Errorf("48k->16k length: got %d, want 160", len(down))
	}

	up := audio.Resample([]int16{0, 100}, 8000, 16000)
	if len(up) != 4 {
		t.Fatalf("8k->16k length: got %d, want 4", len(up))
	}
	if up[1] != 50 {
		t.Errorf("interpolated sample: got %d, want 50", up[1])
	}
}

func TestFramer(t *testing.T) {
	t.Parallel()

	f := audio.NewFramer(4)
	f.Write([]int16{1, 2, 3})
	if _, ok := f.Next(); ok {
		t.Fatal("Next returned a frame with only 3 samples buffered")
	}
	f.Write([]int16{4, 5, 6})
	frame, ok := f.Next()
	if !ok {
		t.Fatal("expected a frame")
	}
	if frame[0] != 1 || frame[3] != 4 {
		t.Errorf("frame = %v, want [1 2 3 4]", frame)
	}
	if f.Buffered() != 2 {
		t.Errorf("Buffered() = %d, want 2", f.Buffered())
	}
	rest, ok := f.Drain()
	if !ok {
		t.Fatal("expected drained remainder")
	}
	if len(rest) != 4 || rest[0] != 5 || rest[1] != 6 || rest[2] != 0 {
		t.Errorf("Drain() = %v, want [5 6 0 0]", rest)
	}
	if _, ok := f.Drain(); ok {
		t.Error("second Drain should report nothing buffered")
	}
}

func TestFormat_FrameDuration(t *testing.T) {
	t.Parallel()
	if got := audio.DefaultFormat().FrameDuration(); got != 256*time.Millisecond {
		t.Errorf("FrameDuration() = %v, want 256ms", got)
	}
	if got := (audio.Format{}).FrameDuration(); got != 0 {
		t.Errorf("zero format FrameDuration() = %v, want 0", got)
	}
}
