package vad

// VADEvent is the detection result for a single frame.
type VADEvent struct {
	// Type is the detection result.
	Type VADEventType

	// Energy is the energy of the classified frame.
	Energy float64

	// Threshold is the decision boundary the frame was compared against.
	Threshold float64

	// SilenceLimit is the number of quiet frames tolerated before speech is
	// considered over. Zero for engines without a dynamic limit.
	SilenceLimit int

	// Probability is a speech score in [0, 1] for engines that produce one.
	Probability float64
}

// VADEventType enumerates VAD detection states.
type VADEventType int

const (
	// VADSpeechStart indicates speech has just begun.
	VADSpeechStart VADEventType = iota

	// VADSpeechContinue indicates ongoing speech.
	VADSpeechContinue

	// VADSpeechEnd indicates speech has just ended.
	VADSpeechEnd

	// VADSilence indicates no speech detected.
	VADSilence
)

// String returns a lower-case name for the event type.
func (t VADEventType) String() string {
	switch t {
	case VADSpeechStart:
		return "speech_start"
	case VADSpeechContinue:
		return "speech_continue"
	case VADSpeechEnd:
		return "speech_end"
	case VADSilence:
		return "silence"
	default:
		return "unknown"
	}
}

// State is a snapshot of a session's detector state.
type State struct {
	Speaking          bool
	AdaptiveThreshold float64
	SpeechFrames      int
	SilenceFrames     int
}
