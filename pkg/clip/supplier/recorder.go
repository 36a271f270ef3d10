package supplier

import (
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/youpy/go-wav"

	clipmidi "github.com/guirod/clipengine/pkg/midi"
	"github.com/guirod/clipengine/pkg/source"
)

// Recording protocol errors.
var (
	// ErrNotRecording is returned by commit when no recording is active.
	ErrNotRecording = errors.New("not recording")
	// ErrNothingToRollBackTo is returned by rollback when the recording
	// started from scratch and no previous material was saved.
	ErrNothingToRollBackTo = errors.New("nothing to roll back to")
	// ErrNotImplemented marks the audio commit path, which is an open
	// product decision; committing audio must fail loudly instead of
	// losing data.
	ErrNotImplemented = errors.New("not implemented")
)

// RecordInput selects what kind of material a recording captures.
type RecordInput int

const (
	// RecordInputMidi captures MIDI events.
	RecordInputMidi RecordInput = iota
	// RecordInputAudio captures audio frames.
	RecordInputAudio
)

// ProjectContext locates where new media files are created.
type ProjectContext struct {
	// MediaDir is the directory for newly recorded media files. Empty
	// means the OS temp directory.
	MediaDir string
}

// Recording sink geometry, matching the original engine's fixed-format
// capture sink.
const (
	recordChannelCount = 2
	recordFrameRate    = 48000
	recordBufferFrames = recordFrameRate * 2
)

// Recorder is the innermost chain stage. In Ready state it plays one
// owned piece of material; in Recording state it captures incoming
// audio or MIDI into new material that commit atomically swaps in, or
// rollback discards in favor of the pre-recording material.
type Recorder struct {
	ready     *readyState
	recording *recordingState
}

type readyState struct {
	material source.Material
}

type recordingState struct {
	audio       *recordingAudioState
	midi        *recordingMidiState
	oldMaterial source.Material
	project     ProjectContext
}

type recordingAudioState struct {
	sink                 *audioSink
	tempBuffer           *source.AudioBuffer
	nextRecordStartFrame int
}

type recordingMidiState struct {
	newSource *source.MidiSource
}

// NewReadyRecorder creates a recorder that plays the given material.
func NewReadyRecorder(material source.Material) *Recorder {
	return &Recorder{ready: &readyState{material: material}}
}

// NewRecordingRecorder creates a recorder that is capturing from the
// start of its life, with no previous material to roll back to.
func NewRecordingRecorder(input RecordInput, project ProjectContext) (*Recorder, error) {
	rec, err := newRecordingState(input, project, nil)
	if err != nil {
		return nil, err
	}
	return &Recorder{recording: rec}, nil
}

func newRecordingState(input RecordInput, project ProjectContext, oldMaterial source.Material) (*recordingState, error) {
	state := &recordingState{oldMaterial: oldMaterial, project: project}
	switch input {
	case RecordInputMidi:
		state.midi = &recordingMidiState{
			newSource: source.NewEmptyMidiSource(recordFrameRate),
		}
	case RecordInputAudio:
		sink, err := newAudioSink(project)
		if err != nil {
			return nil, errors.Wrap(err, "creating audio recording sink")
		}
		state.audio = &recordingAudioState{
			sink:       sink,
			tempBuffer: source.NewAudioBuffer(recordChannelCount, recordBufferFrames),
		}
	}
	return state, nil
}

// IsRecording reports whether a recording is in progress.
func (r *Recorder) IsRecording() bool { return r.recording != nil }

// PrepareRecording transitions to Recording, saving the current
// material so the recording can be rolled back.
func (r *Recorder) PrepareRecording(input RecordInput, project ProjectContext) error {
	var oldMaterial source.Material
	if r.ready != nil {
		oldMaterial = r.ready.material
	} else if r.recording != nil {
		oldMaterial = r.recording.oldMaterial
	}
	state, err := newRecordingState(input, project, oldMaterial)
	if err != nil {
		return err
	}
	r.discardAudioSink()
	r.ready = nil
	r.recording = state
	return nil
}

// discardAudioSink closes the capture file of an abandoned audio
// recording.
func (r *Recorder) discardAudioSink() {
	if r.recording != nil && r.recording.audio != nil {
		_ = r.recording.audio.sink.close()
	}
}

// CommitRecording atomically makes the captured material the new
// playable material. On failure the recorder is left exactly as it was:
// still recording, nothing discarded.
func (r *Recorder) CommitRecording() (source.Material, error) {
	if r.recording == nil {
		return nil, ErrNotRecording
	}
	if r.recording.audio != nil {
		return nil, errors.Wrap(ErrNotImplemented, "committing an audio recording")
	}
	material := r.recording.midi.newSource
	r.recording = nil
	r.ready = &readyState{material: material}
	return material, nil
}

// RollbackRecording discards the capture and restores the material that
// was playable before the recording started.
func (r *Recorder) RollbackRecording() error {
	if r.recording == nil {
		return nil
	}
	if r.recording.oldMaterial == nil {
		return ErrNothingToRollBackTo
	}
	r.discardAudioSink()
	r.ready = &readyState{material: r.recording.oldMaterial}
	r.recording = nil
	return nil
}

// WriteAudioRequest carries one block of captured audio.
type WriteAudioRequest struct {
	InputSampleRate float64
	BlockLength     int
	LeftBuffer      []float32
	RightBuffer     []float32
}

// WriteAudio appends captured audio frames. No-op unless an audio
// recording is active.
func (r *Recorder) WriteAudio(req WriteAudioRequest) {
	if r.recording == nil || r.recording.audio == nil {
		return
	}
	state := r.recording.audio
	startFrame := state.nextRecordStartFrame
	blockLength := req.BlockLength
	// Trust the buffers over the declared length; a short buffer must
	// not take down the audio thread.
	if blockLength > len(req.LeftBuffer) {
		blockLength = len(req.LeftBuffer)
	}
	if blockLength > len(req.RightBuffer) {
		blockLength = len(req.RightBuffer)
	}
	if blockLength < 0 {
		blockLength = 0
	}
	endFrame := startFrame + blockLength
	if max := state.tempBuffer.FrameCount(); endFrame > max {
		endFrame = max
	}
	written := endFrame - startFrame
	for i := 0; i < written; i++ {
		state.tempBuffer.SetSample(startFrame+i, 0, req.LeftBuffer[i])
		state.tempBuffer.SetSample(startFrame+i, 1, req.RightBuffer[i])
	}
	state.nextRecordStartFrame += written
	state.sink.writeFrames(req.LeftBuffer[:written], req.RightBuffer[:written])
}

// WriteMidiRequest carries one block of captured MIDI.
type WriteMidiRequest struct {
	InputSampleRate float64
	BlockLength     int
	Events          []clipmidi.Event
}

// WriteMidi appends captured MIDI events at the given position within
// the material (seconds). In Ready state with MIDI material it overdubs
// into the existing source.
func (r *Recorder) WriteMidi(req WriteMidiRequest, pos float64) {
	var target *source.MidiSource
	switch {
	case r.recording != nil && r.recording.midi != nil:
		target = r.recording.midi.newSource
	case r.ready != nil:
		existing, ok := r.ready.material.(*source.MidiSource)
		if !ok {
			return
		}
		target = existing
	default:
		return
	}
	rate, ok := target.FrameRate()
	if !ok {
		return
	}
	posFrame := int32(pos * rate)
	scale := 1.0
	if req.InputSampleRate > 0 {
		scale = rate / req.InputSampleRate
	}
	for _, e := range req.Events {
		target.AppendEvent(clipmidi.Event{
			Message: e.Message,
			Frame:   posFrame + int32(float64(e.Frame)*scale),
		})
	}
}

// SupplyAudio plays the ready material. While recording there is no
// playable audio yet, so the block degrades to silence.
func (r *Recorder) SupplyAudio(req *source.SupplyAudioRequest, dest *source.AudioBuffer) source.SupplyResponse {
	if r.ready != nil {
		if s, ok := r.ready.material.(source.AudioSupplier); ok {
			return s.SupplyAudio(req, dest)
		}
	}
	return source.SupplyResponse{NextInnerFrame: req.StartFrame}
}

// SupplyMidi plays the ready material, or the in-progress MIDI capture
// while recording (so overdubbed notes are audible immediately).
func (r *Recorder) SupplyMidi(req *source.SupplyMidiRequest, dest *clipmidi.EventList) source.SupplyResponse {
	if r.ready != nil {
		if s, ok := r.ready.material.(source.MidiSupplier); ok {
			return s.SupplyMidi(req, dest)
		}
	}
	if r.recording != nil && r.recording.midi != nil {
		return r.recording.midi.newSource.SupplyMidi(req, dest)
	}
	return source.SupplyResponse{NextInnerFrame: req.StartFrame}
}

// ChannelCount returns the ready material's channel count, 0 otherwise.
func (r *Recorder) ChannelCount() int {
	if r.ready != nil {
		if s, ok := r.ready.material.(source.AudioSupplier); ok {
			return s.ChannelCount()
		}
	}
	return 0
}

// FrameCount returns the ready material's length in frames.
func (r *Recorder) FrameCount() int {
	if r.ready != nil {
		return r.ready.material.FrameCount()
	}
	return 0
}

// Duration returns the ready material's length in seconds.
func (r *Recorder) Duration() float64 {
	if r.ready != nil {
		return r.ready.material.Duration()
	}
	return 0
}

// FrameRate returns the ready material's native rate.
func (r *Recorder) FrameRate() (float64, bool) {
	if r.ready != nil {
		return r.ready.material.FrameRate()
	}
	return 0, false
}

// audioSink streams captured frames into a WAV file so a crash loses as
// little as possible even though audio commit is not implemented yet.
type audioSink struct {
	file   *os.File
	writer *wav.Writer
	path   string
}

func newAudioSink(project ProjectContext) (*audioSink, error) {
	dir := project.MediaDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "clip-audio-"+uuid.NewString()+".wav")
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	writer := wav.NewWriter(file, math.MaxUint32, recordChannelCount, recordFrameRate, 16)
	return &audioSink{file: file, writer: writer, path: path}, nil
}

func (s *audioSink) writeFrames(left, right []float32) {
	samples := make([]wav.Sample, len(left))
	for i := range left {
		samples[i].Values[0] = int(left[i] * math.MaxInt16)
		samples[i].Values[1] = int(right[i] * math.MaxInt16)
	}
	// Sink write failures degrade silently; the capture buffer still
	// holds the frames and the audio thread must not error loudly.
	_ = s.writer.WriteSamples(samples)
}

func (s *audioSink) close() error {
	return s.file.Close()
}
