package supplier

// Chain is the fixed supplier pipeline:
// Fader → Resampler → TimeStretcher → Looper → Recorder.
//
// Rendering pulls through Head(); the named accessors reach into
// individual stages to toggle their behavior. The chain is purely
// compositional and holds no transport state.
type Chain struct {
	fader     *Fader
	resampler *Resampler
	stretcher *TimeStretcher
	looper    *Looper
	recorder  *Recorder
}

// NewChain wires the stages around the given recorder and applies the
// defaults: resampling on, time stretching on, loop-boundary fades on.
func NewChain(recorder *Recorder) *Chain {
	looper := NewLooper(recorder)
	stretcher := NewTimeStretcher(looper)
	resampler := NewResampler(stretcher)
	fader := NewFader(resampler)
	chain := &Chain{
		fader:     fader,
		resampler: resampler,
		stretcher: stretcher,
		looper:    looper,
		recorder:  recorder,
	}
	chain.resampler.SetEnabled(true)
	chain.stretcher.SetEnabled(true)
	chain.looper.SetFadesEnabled(true)
	return chain
}

// Head returns the outermost stage; rendering pulls through it.
func (c *Chain) Head() Supplier { return c.fader }

// Fader returns the fade stage.
func (c *Chain) Fader() *Fader { return c.fader }

// Resampler returns the rate-conversion stage.
func (c *Chain) Resampler() *Resampler { return c.resampler }

// TimeStretcher returns the stretch stage.
func (c *Chain) TimeStretcher() *TimeStretcher { return c.stretcher }

// Looper returns the loop stage.
func (c *Chain) Looper() *Looper { return c.looper }

// Recorder returns the innermost stage.
func (c *Chain) Recorder() *Recorder { return c.recorder }

// SourceFrameRate returns the material's native rate. Only valid in
// ready state; returns false while recording.
func (c *Chain) SourceFrameRate() (float64, bool) {
	return c.recorder.FrameRate()
}

// SourceFrameCount returns the material's length in frames.
func (c *Chain) SourceFrameCount() int { return c.recorder.FrameCount() }

// SourceDuration returns the material's length in seconds.
func (c *Chain) SourceDuration() float64 { return c.recorder.Duration() }
