package grammar

// Report describes the automaton a grammar compiles into. The compiler produces it only when reporting
// is enabled.
type Report struct {
	Name         string         `json:"name"`
	Terminals    []*Terminal    `json:"terminals"`
	NonTerminals []*NonTerminal `json:"non_terminals"`
	Productions  []*Production  `json:"productions"`
	States       []*State       `json:"states"`
}

type Terminal struct {
	Number        int    `json:"number"`
	Name          string `json:"name"`
	Anonymous     bool   `json:"anonymous"`
	Pattern       string `json:"pattern,omitempty"`
	Skip          bool   `json:"skip,omitempty"`
	External      bool   `json:"external,omitempty"`
	Precedence    int    `json:"prec"`
	Associativity string `json:"assoc"`
}

type NonTerminal struct {
	Number    int    `json:"number"`
	Name      string `json:"name"`
	Auxiliary bool   `json:"auxiliary,omitempty"`
}

type Production struct {
	Number            int    `json:"number"`
	LHS               int    `json:"lhs"`
	RHS               []int  `json:"rhs"`
	Precedence        int    `json:"prec"`
	Associativity     string `json:"assoc"`
	DynamicPrecedence int    `json:"dynamic_prec,omitempty"`
}

type Item struct {
	Production int `json:"production"`
	Dot        int `json:"dot"`
}

type Transition struct {
	Symbol int `json:"symbol"`
	State  int `json:"state"`
}

type Reduce struct {
	LookAhead  []int `json:"look_ahead"`
	Production int   `json:"production"`
}

const (
	ResolvedByPrec      = "prec"
	ResolvedByAssoc     = "assoc"
	ResolvedByShift     = "shift"
	ResolvedByProdOrder = "production order"
)

type SRConflict struct {
	Symbol            int    `json:"symbol"`
	State             int    `json:"state"`
	Production        int    `json:"production"`
	AdoptedState      *int   `json:"adopted_state"`
	AdoptedProduction *int   `json:"adopted_production"`
	ResolvedBy        string `json:"resolved_by"`
}

type RRConflict struct {
	Symbol            int    `json:"symbol"`
	Production1       int    `json:"production_1"`
	Production2       int    `json:"production_2"`
	AdoptedProduction int    `json:"adopted_production"`
	ResolvedBy        string `json:"resolved_by"`
}

type State struct {
	Number     int           `json:"number"`
	LexMode    string        `json:"lex_mode"`
	Kernel     []*Item       `json:"kernel"`
	Shift      []*Transition `json:"shift"`
	Reduce     []*Reduce     `json:"reduce"`
	GoTo       []*Transition `json:"goto"`
	SRConflict []*SRConflict `json:"sr_conflict"`
	RRConflict []*RRConflict `json:"rr_conflict"`
}
