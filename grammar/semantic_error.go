package grammar

type SemanticError struct {
	message string
}

func newSemanticError(message string) *SemanticError {
	return &SemanticError{
		message: message,
	}
}

func (e *SemanticError) Error() string {
	return e.message
}

var (
	semErrNoGrammarName       = newSemanticError("a grammar needs a name")
	semErrNoProduction        = newSemanticError("a grammar needs at least one production")
	semErrNoLexicalTerminal   = newSemanticError("a grammar needs at least one terminal having a pattern")
	semErrUnusedProduction    = newSemanticError("unused production")
	semErrUnusedTerminal      = newSemanticError("unused terminal")
	semErrTermCannotBeSkipped = newSemanticError("a terminal used in productions cannot be skipped")
	semErrUndefinedSym        = newSemanticError("undefined symbol")
	semErrDuplicateProduction = newSemanticError("duplicate production")
	semErrDuplicateTerminal   = newSemanticError("duplicate terminal")
	semErrDuplicateName       = newSemanticError("duplicate names are not allowed between terminals and non-terminals")
	semErrReservedName        = newSemanticError("reserved name")
	semErrEmptyPattern        = newSemanticError("a terminal needs a non-empty pattern")
	semErrPrecNotTerminal     = newSemanticError("precedence can be given only to terminals")
	semErrDuplicatePrec       = newSemanticError("a terminal can have only one precedence")
	semErrExternalHasPattern  = newSemanticError("an external terminal can't be skipped or have modes")
)
