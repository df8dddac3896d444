package grammar

import (
	mlspec "github.com/nihei9/maleeni/spec"
	"github.com/nihei9/reparse/compressor"
)

// FormatVersion is the version of the table format this package describes. A loader must reject any other
// version.
const FormatVersion = 1

type CompiledGrammar struct {
	FormatVersion int            `json:"format_version"`
	Name          string         `json:"name"`
	Lexical       *LexicalSpec   `json:"lexical"`
	Syntactic     *SyntacticSpec `json:"syntactic"`
}

type LexicalSpec struct {
	Maleeni *mlspec.CompiledLexSpec `json:"maleeni"`

	// KindToTerminal and Skip are indexed by a lexical kind ID across all modes.
	KindToTerminal []int `json:"kind_to_terminal"`
	TerminalToKind []int `json:"terminal_to_kind"`
	Skip           []int `json:"skip"`

	// StateModes holds a lex mode ID for each parse state. The lexer runs in that mode whenever the
	// state is on top of the parse stack.
	StateModes []int `json:"state_modes"`

	External *ExternalSpec `json:"external,omitempty"`
}

// ExternalSpec describes terminals produced by a scanner supplied by the host program instead of the
// compiled DFA.
type ExternalSpec struct {
	Scanner   string `json:"scanner"`
	Terminals []int  `json:"terminals"`
}

const (
	TableCompressionNone            = 0
	TableCompressionUniqueEntries   = 1
	TableCompressionRowDisplacement = 2
)

// Table is a two-dimensional parsing table stored in one of the compressed forms.
type Table struct {
	Compression     int                              `json:"compression"`
	RowCount        int                              `json:"row_count"`
	ColCount        int                              `json:"col_count"`
	Entries         []int                            `json:"entries,omitempty"`
	UniqueEntries   *compressor.UniqueEntriesTable   `json:"unique_entries,omitempty"`
	RowDisplacement *compressor.RowDisplacementTable `json:"row_displacement,omitempty"`
}

type SyntacticSpec struct {
	// Action is indexed by a state and a terminal number. A negative entry shifts to the state -entry,
	// a positive entry reduces by the production entry, and 0 is an error.
	Action *Table `json:"action"`
	// GoTo is indexed by a state and a non-terminal number. 0 is an error.
	GoTo *Table `json:"goto"`

	StateCount      int `json:"state_count"`
	InitialState    int `json:"initial_state"`
	StartProduction int `json:"start_production"`

	// The following slices are indexed by a production number.
	LHSSymbols              []int `json:"lhs_symbols"`
	AlternativeSymbolCounts []int `json:"alternative_symbol_counts"`
	DynamicPrecedences      []int `json:"dynamic_precedences"`

	Terminals        []string `json:"terminals"`
	TerminalCount    int      `json:"terminal_count"`
	NonTerminals     []string `json:"non_terminals"`
	NonTerminalCount int      `json:"non_terminal_count"`

	// AuxiliaryNonTerminals is indexed by a non-terminal number. 1 means the non-terminal is hidden from
	// the visible tree.
	AuxiliaryNonTerminals []int `json:"auxiliary_non_terminals"`

	EOFSymbol   int `json:"eof_symbol"`
	ErrorSymbol int `json:"error_symbol"`
}
