package grok

const (
	ThinkOpenMarker  = "<think>\n"
	ThinkCloseMarker = "</think>\n"
)

type thinkPhase uint8

const (
	phaseIdle thinkPhase = iota
	phaseThinking
	phaseFinished
)

// thinkingState tracks the reasoning phase of one run separately from whether
// a marker is currently open in the output. Progress and tool events may open
// a marker without entering the thinking phase.
type thinkingState struct {
	show  bool
	phase thinkPhase
	open  bool
}

func (s *thinkingState) openMarker() (string, bool) {
	if !s.show || s.open {
		return "", false
	}
	s.open = true
	return ThinkOpenMarker, true
}

func (s *thinkingState) closeMarker() (string, bool) {
	if !s.open {
		return "", false
	}
	s.open = false
	return ThinkCloseMarker, true
}

// observe advances the phase for a token. It returns the marker to emit
// before the token, if any, and drop=true for thinking tokens that arrive
// after reasoning already finished.
func (s *thinkingState) observe(isThinking bool) (marker string, drop bool) {
	switch {
	case s.phase == phaseFinished && isThinking:
		return "", true
	case s.phase == phaseIdle && isThinking:
		s.phase = phaseThinking
		marker, _ = s.openMarker()
	case s.phase == phaseThinking && !isThinking:
		s.phase = phaseFinished
		marker, _ = s.closeMarker()
	}
	return marker, false
}
