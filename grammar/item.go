package grammar

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"

	"github.com/nihei9/reparse/grammar/symbol"
)

type lrItemID [32]byte

func (id lrItemID) String() string {
	return fmt.Sprintf("%x", id.num())
}

func (id lrItemID) num() uint32 {
	return binary.LittleEndian.Uint32(id[:])
}

type lookAhead struct {
	symbols map[symbol.Symbol]struct{}

	// When propagation is true, an item propagates look-ahead symbols to other items.
	propagation bool
}

func (la *lookAhead) add(syms map[symbol.Symbol]struct{}) bool {
	changed := false
	for a := range syms {
		if _, ok := la.symbols[a]; ok {
			continue
		}
		if la.symbols == nil {
			la.symbols = map[symbol.Symbol]struct{}{}
		}
		la.symbols[a] = struct{}{}
		changed = true
	}
	return changed
}

type lrItem struct {
	id   lrItemID
	prod productionID

	// E → E + T
	//
	// Dot | Dotted Symbol | Item
	// ----+---------------+------------
	// 0   | E             | E →・E + T
	// 1   | +             | E → E・+ T
	// 2   | T             | E → E +・T
	// 3   | Nil           | E → E + T・
	dot          int
	dottedSymbol symbol.Symbol

	// When initial is true, the item looks like S' →・S.
	initial bool

	// When reducible is true, the item looks like E → E + T・.
	reducible bool

	kernel bool

	lookAhead lookAhead
}

func newLR0Item(prod *production, dot int) (*lrItem, error) {
	if prod == nil {
		return nil, fmt.Errorf("production must be non-nil")
	}
	if dot < 0 || dot > prod.rhsLen {
		return nil, fmt.Errorf("dot must be between 0 and %v", prod.rhsLen)
	}

	var id lrItemID
	{
		b := make([]byte, 0, len(prod.id)+8)
		b = append(b, prod.id[:]...)
		b = binary.LittleEndian.AppendUint64(b, uint64(dot))
		id = sha256.Sum256(b)
	}

	dottedSymbol := symbol.SymbolNil
	if dot < prod.rhsLen {
		dottedSymbol = prod.rhs[dot]
	}
	initial := prod.lhs.IsStart() && dot == 0

	return &lrItem{
		id:           id,
		prod:         prod.id,
		dot:          dot,
		dottedSymbol: dottedSymbol,
		initial:      initial,
		reducible:    dot == prod.rhsLen,
		kernel:       initial || dot > 0,
	}, nil
}

type kernelID [32]byte

func (id kernelID) String() string {
	return fmt.Sprintf("%x", binary.LittleEndian.Uint32(id[:]))
}

type kernel struct {
	id    kernelID
	items []*lrItem
}

func newKernel(items []*lrItem) (*kernel, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("a kernel need at least one item")
	}

	m := map[lrItemID]*lrItem{}
	for _, item := range items {
		if !item.kernel {
			return nil, fmt.Errorf("not a kernel item: %v", item.id)
		}
		m[item.id] = item
	}
	sortedItems := make([]*lrItem, 0, len(m))
	for _, item := range m {
		sortedItems = append(sortedItems, item)
	}
	sort.Slice(sortedItems, func(i, j int) bool {
		return sortedItems[i].id.num() < sortedItems[j].id.num()
	})

	b := make([]byte, 0, len(sortedItems)*32)
	for _, item := range sortedItems {
		b = append(b, item.id[:]...)
	}

	return &kernel{
		id:    sha256.Sum256(b),
		items: sortedItems,
	}, nil
}

// findItem looks an item up among the kernel items first and then among the empty-production items.
func (s *lrState) findItem(id lrItemID) *lrItem {
	for _, item := range s.items {
		if item.id == id {
			return item
		}
	}
	for _, item := range s.emptyProdItems {
		if item.id == id {
			return item
		}
	}
	return nil
}

type stateNum int

const stateNumInitial = stateNum(0)

func (n stateNum) Int() int {
	return int(n)
}

func (n stateNum) String() string {
	return strconv.Itoa(int(n))
}

type lrState struct {
	*kernel
	num       stateNum
	next      map[symbol.Symbol]kernelID
	reducible map[productionID]struct{}

	// emptyProdItems holds the reducible items of empty productions like `p → ・ε`. The kernel doesn't
	// include them, but they need their own look-ahead symbols.
	//
	// s' → ・s
	// s → ・A
	// s → ・ε
	emptyProdItems []*lrItem
}
