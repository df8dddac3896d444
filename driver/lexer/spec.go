package lexer

import (
	"fmt"

	mlspec "github.com/nihei9/maleeni/spec"
)

// lexSpec reads the DFA tables maleeni compiled. Mode, state and kind IDs are plain ints here; 0 is the nil
// ID of each.
type lexSpec struct {
	spec *mlspec.CompiledLexSpec

	// dead[mode][state] is true when the state has no outgoing transition, so reading further bytes can't
	// change the match.
	dead [][]bool
}

func newLexSpec(s *mlspec.CompiledLexSpec) (ls *lexSpec, err error) {
	if s == nil {
		return nil, fmt.Errorf("lexical specification is missing")
	}
	if len(s.Specs) < 2 || len(s.ModeNames) != len(s.Specs) || len(s.KindIDs) != len(s.Specs) {
		return nil, fmt.Errorf("inconsistent mode count")
	}
	switch s.CompressionLevel {
	case 0, 1, 2:
	default:
		return nil, fmt.Errorf("unknown compression level: %v", s.CompressionLevel)
	}

	ls = &lexSpec{
		spec: s,
		dead: make([][]bool, len(s.Specs)),
	}

	// Probing every transition validates the tables as a side effect. Malformed tables make the lookups
	// go out of range.
	defer func() {
		if r := recover(); r != nil {
			ls = nil
			err = fmt.Errorf("malformed DFA: %v", r)
		}
	}()
	for mode := 1; mode < len(s.Specs); mode++ {
		modeSpec := s.Specs[mode]
		if modeSpec == nil || modeSpec.DFA == nil {
			return nil, fmt.Errorf("mode %v has no DFA", mode)
		}
		rowCount := modeSpec.DFA.RowCount
		if len(modeSpec.DFA.AcceptingStates) != rowCount {
			return nil, fmt.Errorf("mode %v: accepting state count mismatch", mode)
		}
		if init := ls.InitialState(mode); init <= 0 || init >= rowCount {
			return nil, fmt.Errorf("mode %v: invalid initial state: %v", mode, init)
		}
		dead := make([]bool, rowCount)
		for state := 1; state < rowCount; state++ {
			dead[state] = true
			for v := 0; v < 256; v++ {
				next, ok := ls.NextState(mode, state, v)
				if !ok {
					continue
				}
				if next <= 0 || next >= rowCount {
					return nil, fmt.Errorf("mode %v: transition to an invalid state: %v", mode, next)
				}
				dead[state] = false
			}
			if kind, ok := ls.Accept(mode, state); ok {
				if kind >= len(s.KindIDs[mode]) {
					return nil, fmt.Errorf("mode %v: invalid mode kind: %v", mode, kind)
				}
				if k := ls.Kind(mode, kind); k <= 0 || k >= len(s.KindNames) {
					return nil, fmt.Errorf("mode %v: invalid kind: %v", mode, k)
				}
			}
		}
		ls.dead[mode] = dead
	}
	return ls, nil
}

func (s *lexSpec) ModeCount() int {
	return len(s.spec.Specs)
}

func (s *lexSpec) ModeName(mode int) string {
	return string(s.spec.ModeNames[mode])
}

func (s *lexSpec) InitialState(mode int) int {
	return int(s.spec.Specs[mode].DFA.InitialStateID)
}

func (s *lexSpec) NextState(mode int, state int, v int) (int, bool) {
	switch s.spec.CompressionLevel {
	case 2:
		tran := s.spec.Specs[mode].DFA.Transition
		rowNum := tran.RowNums[state]
		d := tran.UniqueEntries.RowDisplacement[rowNum]
		if tran.UniqueEntries.Bounds[d+v] != rowNum {
			return 0, false
		}
		next := int(tran.UniqueEntries.Entries[d+v])
		return next, next != 0
	case 1:
		tran := s.spec.Specs[mode].DFA.Transition
		next := int(tran.UncompressedUniqueEntries[tran.RowNums[state]*tran.OriginalColCount+v])
		return next, next != 0
	}

	dfa := s.spec.Specs[mode].DFA
	next := int(dfa.UncompressedTransition[state*dfa.ColCount+v])
	return next, next != 0
}

func (s *lexSpec) Dead(mode int, state int) bool {
	return s.dead[mode][state]
}

// Accept returns the mode kind a state accepts.
func (s *lexSpec) Accept(mode int, state int) (int, bool) {
	modeKind := int(s.spec.Specs[mode].DFA.AcceptingStates[state])
	return modeKind, modeKind != 0
}

// Kind converts a mode kind into a kind unique among all modes.
func (s *lexSpec) Kind(mode int, modeKind int) int {
	return int(s.spec.KindIDs[mode][modeKind])
}

func (s *lexSpec) KindCount() int {
	return len(s.spec.KindNames)
}
