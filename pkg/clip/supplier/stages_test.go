package supplier

import (
	"math"
	"testing"

	"github.com/guirod/clipengine/pkg/source"
)

// constantSource builds material whose samples are all 1.0, so gain
// changes are directly visible.
func constantSource(t *testing.T, frames int, frameRate float64) *source.AudioSource {
	t.Helper()
	data := make([]float32, frames)
	for i := range data {
		data[i] = 1.0
	}
	src, err := source.NewAudioSource(data, 1, frameRate)
	if err != nil {
		t.Fatalf("NewAudioSource: %v", err)
	}
	return src
}

func TestFaderRampsDownToSilence(t *testing.T) {
	// 10 ms at 1000 Hz is a 10 frame fade.
	chain := NewChain(NewReadyRecorder(constantSource(t, 100, 1000)))
	fader := chain.Fader()
	fader.StartFadeOut()

	dest := source.NewAudioBuffer(1, 20)
	req := source.SupplyAudioRequest{StartFrame: 0, DestSampleRate: 1000}
	fader.SupplyAudio(&req, dest)

	if got := dest.Sample(0, 0); got != 1.0 {
		t.Errorf("first frame gain = %v, want 1.0", got)
	}
	if got := dest.Sample(5, 0); got != 0.5 {
		t.Errorf("mid-fade gain = %v, want 0.5", got)
	}
	for f := 10; f < 20; f++ {
		if got := dest.Sample(f, 0); got != 0 {
			t.Fatalf("frame %d after fade-out = %v, want 0", f, got)
		}
	}
	if !fader.IsSilent() {
		t.Error("fader not silent after completed fade-out")
	}

	// While silent, the output is cleared regardless of the material.
	for i := range dest.Data() {
		dest.Data()[i] = 0.7
	}
	resp := fader.SupplyAudio(&req, dest)
	if resp.NumFramesWritten != 20 {
		t.Errorf("silent supply frames written = %d, want 20", resp.NumFramesWritten)
	}
	for f := 0; f < 20; f++ {
		if dest.Sample(f, 0) != 0 {
			t.Fatalf("silent frame %d = %v, want 0", f, dest.Sample(f, 0))
		}
	}
	// Silence is terminal until an explicit fade-in.
	if !fader.IsSilent() {
		t.Error("fader un-silenced itself without a fade-in")
	}
}

func TestFaderRampsBackIn(t *testing.T) {
	chain := NewChain(NewReadyRecorder(constantSource(t, 100, 1000)))
	fader := chain.Fader()
	fader.StartFadeOut()
	dest := source.NewAudioBuffer(1, 20)
	req := source.SupplyAudioRequest{StartFrame: 0, DestSampleRate: 1000}
	fader.SupplyAudio(&req, dest)

	fader.StartFadeIn()
	fader.SupplyAudio(&req, dest)
	if got := dest.Sample(0, 0); got != 0 {
		t.Errorf("fade-in start gain = %v, want 0", got)
	}
	if got := dest.Sample(5, 0); got != 0.5 {
		t.Errorf("fade-in mid gain = %v, want 0.5", got)
	}
	for f := 10; f < 20; f++ {
		if dest.Sample(f, 0) != 1.0 {
			t.Fatalf("frame %d after fade-in = %v, want 1.0", f, dest.Sample(f, 0))
		}
	}
	if fader.IsSilent() {
		t.Error("fader still silent after fade-in")
	}
}

func TestResamplerHalvesRate(t *testing.T) {
	recorder := NewReadyRecorder(rampSource(t, 200, 100))
	resampler := NewResampler(recorder)
	resampler.SetEnabled(true)

	dest := source.NewAudioBuffer(1, 10)
	// Destination at half the native rate: every output frame covers
	// two source frames.
	req := source.SupplyAudioRequest{StartFrame: 0, DestSampleRate: 50}
	resp := resampler.SupplyAudio(&req, dest)
	if resp.NumFramesWritten != 10 {
		t.Fatalf("frames written = %d, want 10", resp.NumFramesWritten)
	}
	for f := 0; f < 10; f++ {
		if got := dest.Sample(f, 0); got != float32(2*f) {
			t.Errorf("sample %d = %v, want %v", f, got, float32(2*f))
		}
	}
}

func TestResamplerTranslatesStartFrame(t *testing.T) {
	recorder := NewReadyRecorder(rampSource(t, 200, 100))
	resampler := NewResampler(recorder)
	resampler.SetEnabled(true)

	dest := source.NewAudioBuffer(1, 4)
	req := source.SupplyAudioRequest{StartFrame: 10, DestSampleRate: 50}
	resampler.SupplyAudio(&req, dest)
	// Destination frame 10 at 50 Hz is native frame 20.
	if got := dest.Sample(0, 0); got != 20 {
		t.Errorf("first sample = %v, want 20", got)
	}
}

func TestResamplerBypassesWhenDisabled(t *testing.T) {
	recorder := NewReadyRecorder(rampSource(t, 200, 100))
	resampler := NewResampler(recorder)

	dest := source.NewAudioBuffer(1, 4)
	req := source.SupplyAudioRequest{StartFrame: 3, DestSampleRate: 50}
	resampler.SupplyAudio(&req, dest)
	if got := dest.Sample(0, 0); got != 3 {
		t.Errorf("bypassed sample = %v, want 3", got)
	}
}

func TestLooperWrapsAudio(t *testing.T) {
	recorder := NewReadyRecorder(rampSource(t, 100, 1000))
	looper := NewLooper(recorder)
	looper.SetEnabled(true)

	dest := source.NewAudioBuffer(1, 250)
	req := source.SupplyAudioRequest{StartFrame: 0, DestSampleRate: 1000}
	resp := looper.SupplyAudio(&req, dest)
	if resp.NumFramesWritten != 250 {
		t.Fatalf("frames written = %d, want 250", resp.NumFramesWritten)
	}
	// Away from the loop boundaries the material repeats verbatim.
	if got := dest.Sample(50, 0); got != 50 {
		t.Errorf("sample 50 = %v, want 50", got)
	}
	if got := dest.Sample(150, 0); got != 50 {
		t.Errorf("sample 150 = %v, want 50 (wrapped)", got)
	}
	if got := dest.Sample(220, 0); got != 20 {
		t.Errorf("sample 220 = %v, want 20 (second wrap)", got)
	}
}

func TestLooperWrapsRequestedStartPosition(t *testing.T) {
	recorder := NewReadyRecorder(rampSource(t, 100, 1000))
	looper := NewLooper(recorder)
	looper.SetEnabled(true)
	looper.SetFadesEnabled(false)

	dest := source.NewAudioBuffer(1, 10)
	req := source.SupplyAudioRequest{StartFrame: 230, DestSampleRate: 1000}
	looper.SupplyAudio(&req, dest)
	if got := dest.Sample(0, 0); got != 30 {
		t.Errorf("sample at wrapped start = %v, want 30", got)
	}
}

func TestLooperBoundaryFades(t *testing.T) {
	recorder := NewReadyRecorder(constantSource(t, 100, 1000))
	looper := NewLooper(recorder)
	looper.SetEnabled(true)
	looper.SetFadesEnabled(true)

	dest := source.NewAudioBuffer(1, 200)
	req := source.SupplyAudioRequest{StartFrame: 0, DestSampleRate: 1000}
	looper.SupplyAudio(&req, dest)

	// 10 ms at 1000 Hz is a 10 frame fade around each boundary.
	if got := dest.Sample(50, 0); got != 1.0 {
		t.Errorf("mid-cycle sample = %v, want unfaded 1.0", got)
	}
	if got := dest.Sample(95, 0); got != 0.5 {
		t.Errorf("pre-boundary sample = %v, want 0.5", got)
	}
	if got := dest.Sample(105, 0); got != 0.5 {
		t.Errorf("post-boundary sample = %v, want 0.5", got)
	}
}

func TestLooperDisabledPassesThrough(t *testing.T) {
	recorder := NewReadyRecorder(rampSource(t, 100, 1000))
	looper := NewLooper(recorder)

	dest := source.NewAudioBuffer(1, 250)
	req := source.SupplyAudioRequest{StartFrame: 0, DestSampleRate: 1000}
	resp := looper.SupplyAudio(&req, dest)
	if resp.NumFramesWritten != 100 {
		t.Errorf("frames written = %d, want 100 (no wrap)", resp.NumFramesWritten)
	}
	if !resp.ReachedEnd {
		t.Error("expected ReachedEnd from the material")
	}
}

func TestTimeStretcherDoubleSpeed(t *testing.T) {
	recorder := NewReadyRecorder(rampSource(t, 8192, 8192))
	stretcher := NewTimeStretcher(recorder)
	stretcher.SetEnabled(true)
	stretcher.SetFactor(2.0)

	dest := source.NewAudioBuffer(1, 2048)
	req := source.SupplyAudioRequest{StartFrame: 0, DestSampleRate: 8192}
	resp := stretcher.SupplyAudio(&req, dest)
	if resp.NumFramesWritten != 2048 {
		t.Fatalf("frames written = %d, want 2048", resp.NumFramesWritten)
	}
	// Past the crossfade region of grain 0, output follows the input
	// grain verbatim.
	if got := dest.Sample(200, 0); got != 200 {
		t.Errorf("grain 0 sample = %v, want 200", got)
	}
	// Grain 1 starts reading the input at frame 2048 (factor 2).
	if got := dest.Sample(1024+500, 0); got != 2048+500 {
		t.Errorf("grain 1 sample = %v, want %v", got, float32(2048+500))
	}
}

func TestTimeStretcherBypassAtUnityFactor(t *testing.T) {
	recorder := NewReadyRecorder(rampSource(t, 1000, 1000))
	stretcher := NewTimeStretcher(recorder)
	stretcher.SetEnabled(true)

	dest := source.NewAudioBuffer(1, 100)
	req := source.SupplyAudioRequest{StartFrame: 17, DestSampleRate: 1000}
	stretcher.SupplyAudio(&req, dest)
	if got := dest.Sample(0, 0); got != 17 {
		t.Errorf("bypassed sample = %v, want 17", got)
	}
}

func TestStretchConsumptionReporting(t *testing.T) {
	recorder := NewReadyRecorder(rampSource(t, 8192, 8192))
	stretcher := NewTimeStretcher(recorder)
	stretcher.SetEnabled(true)
	stretcher.SetFactor(0.5)

	dest := source.NewAudioBuffer(1, 1024)
	req := source.SupplyAudioRequest{StartFrame: 0, DestSampleRate: 8192}
	resp := stretcher.SupplyAudio(&req, dest)
	if got := resp.NumFramesConsumed; math.Abs(float64(got)-512) > 1 {
		t.Errorf("frames consumed = %d, want about 512 at factor 0.5", got)
	}
}
