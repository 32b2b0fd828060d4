package qplog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

func TestNopSinkDiscardsEverything(t *testing.T) {
	var s NopSink
	s.DumpInit(InitData{})
	s.DumpIteration(IterationData{})
}

func TestCallback1DumpsIteration(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, zerolog.DebugLevel)
	cb := NewCallback1(logger)

	cb.DumpIteration(IterationData{
		Iteration: 3,
		ActiveSet: []bool{true, false, true},
		Primal:    []float64{1, 2},
		Dual:      []float64{0.1, 0.2},
		NewIndex:  2,
		Singular:  false,
	})

	out := buf.String()
	if !strings.Contains(out, `"iteration":3`) {
		t.Fatalf("expected iteration field in output, got %s", out)
	}
	if !strings.Contains(out, `"new_index":2`) {
		t.Fatalf("expected new_index field in output, got %s", out)
	}
}

func TestCallback1DumpInitWithBraceFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, zerolog.DebugLevel)
	logger.SetFormat(BraceFormat)
	cb := NewCallback1(logger)

	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	cb.DumpInit(InitData{M: m, S: []float64{0.1}, C: []float64{-1}, B: []float64{1}})

	out := buf.String()
	if !strings.Contains(out, "{1 2}") {
		t.Fatalf("expected brace-wrapped row in output, got %s", out)
	}
}

func TestLevelFromLogLevel(t *testing.T) {
	cases := map[int]zerolog.Level{
		0: zerolog.Disabled,
		1: zerolog.ErrorLevel,
		2: zerolog.InfoLevel,
		3: zerolog.DebugLevel,
	}
	for in, want := range cases {
		if got := LevelFromLogLevel(in); got != want {
			t.Fatalf("LevelFromLogLevel(%d) = %v, want %v", in, got, want)
		}
	}
}
