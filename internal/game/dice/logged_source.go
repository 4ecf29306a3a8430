package dice

import "go.uber.org/zap"

// LoggedSource wraps a Source and logs every draw at debug level.
type LoggedSource struct {
	src    Source
	logger *zap.Logger
	label  string
}

// NewLoggedSource creates a LoggedSource drawing from src.
//
// Precondition: src and logger must be non-nil.
func NewLoggedSource(src Source, logger *zap.Logger, label string) *LoggedSource {
	return &LoggedSource{src: src, logger: logger, label: label}
}

// Intn draws from the wrapped source and logs the bound and result.
//
// Precondition: n > 0.
// Postcondition: Returns the wrapped source's value unchanged.
func (l *LoggedSource) Intn(n int) int {
	v := l.src.Intn(n)
	l.logger.Debug("random draw",
		zap.String("label", l.label),
		zap.Int("bound", n),
		zap.Int("value", v),
	)
	return v
}

// Sequence is a Source that replays fixed values, modulo n, cycling when exhausted.
// An empty Sequence always returns 0. Tests use it to script boss picks.
type Sequence []int

// Intn returns the next value of the sequence reduced into [0, n).
//
// Precondition: n > 0.
func (s *Sequence) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	if len(*s) == 0 {
		return 0
	}
	v := (*s)[0]
	*s = append((*s)[1:], v)
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
