// Package qplog implements the solver's diagnostic callback protocol: a
// two-stage dump invoked synchronously between well-defined solve stages
// (spec.md §6, "Callback interface"). It must never mutate solver state
// (spec.md §5).
//
// The original C++ source (original_source/NQP/src/log.cpp) numbers the
// two stages 1 and 2; spec.md §9 Open Question (c) notes the numbering
// carries no semantic meaning, so this package names the dump methods
// after what they carry instead (DumpInit, DumpIteration).
//
// Logging is backed by github.com/rs/zerolog, following the idiom in
// _examples/itohio-EasyRobot/pkg/logger/logger.go.
package qplog

import (
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// Format controls how matrices are rendered in dumps. BraceFormat mirrors
// the CPP_FORMAT build-tag behavior of the original logger (spec.md §6,
// "Log format") as a runtime-selectable option rather than a build tag.
type Format int

const (
	PlainFormat Format = iota
	BraceFormat
)

// InitData is the payload dumped once, after the problem preparer has run
// (spec.md §6 stage 1): the canonical factorization and NNLS data plus
// the timing of each step.
type InitData struct {
	Chol, CholInv *mat.Dense
	M             *mat.Dense
	S, C, B       []float64
	TChol, TInv, TM time.Duration
}

// IterationData is the payload dumped once per dual iteration (spec.md
// §6 stage 2).
type IterationData struct {
	Iteration int
	ActiveSet []bool
	Primal    []float64
	Dual      []float64
	NewIndex  int
	Singular  bool
}

// Sink receives dump events. Implementations must be synchronous and must
// not mutate solver state (spec.md §5).
type Sink interface {
	DumpInit(InitData)
	DumpIteration(IterationData)
}

// NopSink discards every event; it is the zero-cost default when logging
// is not configured.
type NopSink struct{}

func (NopSink) DumpInit(InitData)           {}
func (NopSink) DumpIteration(IterationData) {}

// LevelFromLogLevel maps UserSettings.LogLevel (0..3, spec.md §6) onto a
// zerolog level: 0 disables logging, 3 is the most verbose.
func LevelFromLogLevel(logLevel int) zerolog.Level {
	switch {
	case logLevel <= 0:
		return zerolog.Disabled
	case logLevel == 1:
		return zerolog.ErrorLevel
	case logLevel == 2:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}

// Logger wraps a zerolog.Logger with the matrix-row formatting the
// Callback1 dumps use; its only option is SetFormat.
type Logger struct {
	log    zerolog.Logger
	format Format
}

// NewLogger builds a Logger writing to w at the given level.
func NewLogger(w io.Writer, level zerolog.Level) *Logger {
	l := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{log: l}
}

// SetFormat selects brace-wrapped matrix rows (BraceFormat) or plain rows
// (PlainFormat, the default).
func (l *Logger) SetFormat(f Format) {
	l.format = f
}

func (l *Logger) matrixRows(m *mat.Dense) []string {
	if m == nil {
		return nil
	}
	r, c := m.Dims()
	rows := make([]string, r)
	for i := 0; i < r; i++ {
		row := mat.Row(nil, i, m)
		rows[i] = formatRow(row, l.format)
	}
	return rows
}

func formatRow(row []float64, format Format) string {
	s := ""
	for i, v := range row {
		if i > 0 {
			s += " "
		}
		s += formatFloat(v)
	}
	if format == BraceFormat {
		return "{" + s + "}"
	}
	return s
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Callback1 implements Sink using the protocol named after the original
// two-stage dump in original_source/NQP/src/log.cpp (the name is kept as
// a recognizable term of art for this exact dump shape, per spec.md §9
// Open Question (c): the stage numbering is gone, the name is not).
type Callback1 struct {
	logger *Logger
}

// NewCallback1 constructs a Callback1 writing through logger.
func NewCallback1(logger *Logger) *Callback1 {
	return &Callback1{logger: logger}
}

func (c *Callback1) DumpInit(d InitData) {
	if c.logger == nil {
		return
	}
	ev := c.logger.log.Debug().Str("stage", "INITIALIZATION")
	ev.Strs("chol", c.logger.matrixRows(d.Chol))
	ev.Strs("chol_inv", c.logger.matrixRows(d.CholInv))
	ev.Strs("m", c.logger.matrixRows(d.M))
	ev.Floats64("s", d.S)
	ev.Floats64("c", d.C)
	ev.Floats64("b", d.B)
	ev.Dur("t_chol", d.TChol)
	ev.Dur("t_inv", d.TInv)
	ev.Dur("t_m", d.TM)
	ev.Msg("init")
}

func (c *Callback1) DumpIteration(d IterationData) {
	if c.logger == nil {
		return
	}
	ev := c.logger.log.Debug().Int("iteration", d.Iteration)
	ev.Bools("active_set", d.ActiveSet)
	ev.Floats64("primal", d.Primal)
	ev.Floats64("dual", d.Dual)
	ev.Int("new_index", d.NewIndex)
	ev.Bool("singular", d.Singular)
	ev.Msg("iteration")
}
