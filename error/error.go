package error

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// SpecError is an error found in a grammar description.
type SpecError struct {
	Cause      error
	FilePath   string
	SourceName string
	Row        int
}

func (e *SpecError) Error() string {
	var b strings.Builder
	if e.SourceName != "" {
		fmt.Fprintf(&b, "%v: ", e.SourceName)
	}
	if e.Row != 0 {
		fmt.Fprintf(&b, "%v: ", e.Row)
	}
	fmt.Fprintf(&b, "error: %v", e.Cause)

	line := readLine(e.FilePath, e.Row)
	if line != "" {
		fmt.Fprintf(&b, "\n    %v", line)
	}

	return b.String()
}

func (e *SpecError) Unwrap() error {
	return e.Cause
}

func readLine(filePath string, row int) string {
	if filePath == "" || row <= 0 {
		return ""
	}

	f, err := os.Open(filePath)
	if err != nil {
		return ""
	}
	defer f.Close()

	i := 1
	s := bufio.NewScanner(f)
	for s.Scan() {
		if i == row {
			return s.Text()
		}
		i++
	}

	return ""
}

type SpecErrors []*SpecError

func (e SpecErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%v", e[0])
	for _, err := range e[1:] {
		fmt.Fprintf(&b, "\n%v", err)
	}

	return b.String()
}

// MalformedTableError reports a grammar table that cannot be loaded. It is returned only when a table
// is loaded, never while parsing.
type MalformedTableError struct {
	Section string
	Cause   error
}

func (e *MalformedTableError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("malformed grammar table: %v", e.Cause)
	}
	return fmt.Sprintf("malformed grammar table: %v: %v", e.Section, e.Cause)
}

func (e *MalformedTableError) Unwrap() error {
	return e.Cause
}

// ErrUnsupportedVersion is wrapped by a MalformedTableError when the format version of a table is unknown.
var ErrUnsupportedVersion = errors.New("unsupported format version")

// EditError reports an edit sequence that does not describe the transition between two texts.
type EditError struct {
	// Index is the position of the offending edit in the sequence, or -1 when the sequence as a whole
	// doesn't match the new text.
	Index int
	Cause error
}

func (e *EditError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid edits: %v", e.Cause)
	}
	return fmt.Sprintf("invalid edit #%v: %v", e.Index, e.Cause)
}

func (e *EditError) Unwrap() error {
	return e.Cause
}

// ErrStepBudgetExceeded is returned together with a partial tree when a parse runs out of its step budget.
var ErrStepBudgetExceeded = errors.New("step budget exceeded")
