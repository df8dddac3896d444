package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/spf13/cobra"

	spec "github.com/nihei9/reparse/spec/grammar"
)

func init() {
	cmd := &cobra.Command{
		Use:     "show <report file path>",
		Short:   "Print a report in a readable format",
		Example: `  reparse show grammar-report.json`,
		Args:    cobra.ExactArgs(1),
		RunE:    runShow,
	}
	rootCmd.AddCommand(cmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	report, err := readReport(args[0])
	if err != nil {
		return err
	}
	return writeReport(os.Stdout, report)
}

func readReport(path string) (*spec.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Cannot open the report %s: %w", path, err)
	}
	defer f.Close()

	report := &spec.Report{}
	if err := json.NewDecoder(f).Decode(report); err != nil {
		return nil, fmt.Errorf("Cannot read the report %s: %w", path, err)
	}
	return report, nil
}

const reportTemplate = `# Conflicts

{{ printConflictSummary . }}

# Terminals

{{ range .Terminals -}}
{{ with . }}{{ printTerminal . }}
{{ end }}{{ end }}
# Productions

{{ range .Productions -}}
{{ with . }}{{ printProduction . }}
{{ end }}{{ end }}
# States
{{ range .States }}
## State {{ .Number }}{{ if .LexMode }} (lex mode {{ .LexMode }}){{ end }}

{{ range .Kernel -}}
{{ printItem . }}
{{ end }}
{{ range .Shift -}}
{{ printShift . }}
{{ end -}}
{{ range .Reduce -}}
{{ printReduce . }}
{{ end -}}
{{ range .GoTo -}}
{{ printGoTo . }}
{{ end }}
{{ range .SRConflict -}}
{{ printSRConflict . }}
{{ end -}}
{{ range .RRConflict -}}
{{ printRRConflict . }}
{{ end -}}
{{ end }}`

func writeReport(w io.Writer, report *spec.Report) error {
	termName := func(sym int) string {
		if sym < 0 || sym >= len(report.Terminals) || report.Terminals[sym] == nil {
			return fmt.Sprintf("<terminal %v>", sym)
		}
		return report.Terminals[sym].Name
	}

	nonTermName := func(sym int) string {
		if sym < 0 || sym >= len(report.NonTerminals) || report.NonTerminals[sym] == nil {
			return fmt.Sprintf("<non-terminal %v>", sym)
		}
		return report.NonTerminals[sym].Name
	}

	assocName := func(assoc string) string {
		switch assoc {
		case "l":
			return "left"
		case "r":
			return "right"
		default:
			return "no"
		}
	}

	rhs := func(b *strings.Builder, prod *spec.Production, dot int) {
		for i, e := range prod.RHS {
			if i == dot {
				fmt.Fprintf(b, " ・")
			}
			if e > 0 {
				fmt.Fprintf(b, " %v", termName(e))
			} else {
				fmt.Fprintf(b, " %v", nonTermName(e*-1))
			}
		}
		if dot >= len(prod.RHS) {
			fmt.Fprintf(b, " ・")
		}
	}

	fns := template.FuncMap{
		"printConflictSummary": func(report *spec.Report) string {
			var implicitlyResolvedCount int
			var explicitlyResolvedCount int
			for _, s := range report.States {
				for _, c := range s.SRConflict {
					if c.ResolvedBy == spec.ResolvedByShift {
						implicitlyResolvedCount++
					} else {
						explicitlyResolvedCount++
					}
				}
				for _, c := range s.RRConflict {
					if c.ResolvedBy == spec.ResolvedByProdOrder {
						implicitlyResolvedCount++
					} else {
						explicitlyResolvedCount++
					}
				}
			}

			var b strings.Builder
			if implicitlyResolvedCount == 1 {
				fmt.Fprintf(&b, "%v conflict occurred and resolved implicitly.\n", implicitlyResolvedCount)
			} else if implicitlyResolvedCount > 1 {
				fmt.Fprintf(&b, "%v conflicts occurred and resolved implicitly.\n", implicitlyResolvedCount)
			}
			if explicitlyResolvedCount == 1 {
				fmt.Fprintf(&b, "%v conflict occurred and resolved explicitly.\n", explicitlyResolvedCount)
			} else if explicitlyResolvedCount > 1 {
				fmt.Fprintf(&b, "%v conflicts occurred and resolved explicitly.\n", explicitlyResolvedCount)
			}
			if implicitlyResolvedCount == 0 && explicitlyResolvedCount == 0 {
				fmt.Fprintf(&b, "No conflict")
			}
			return b.String()
		},
		"printTerminal": func(term *spec.Terminal) string {
			prec := " -"
			if term.Precedence != 0 {
				prec = fmt.Sprintf("%2v", term.Precedence)
			}
			assoc := "-"
			if term.Associativity != "" {
				assoc = term.Associativity
			}

			var attrs []string
			switch {
			case term.Skip:
				attrs = append(attrs, "skip")
			case term.External:
				attrs = append(attrs, "external")
			}
			if term.Pattern != "" && !term.Anonymous {
				attrs = append(attrs, fmt.Sprintf("%q", term.Pattern))
			}
			if len(attrs) > 0 {
				return fmt.Sprintf("%4v %v %v %v (%v)", term.Number, prec, assoc, term.Name, strings.Join(attrs, ", "))
			}
			return fmt.Sprintf("%4v %v %v %v", term.Number, prec, assoc, term.Name)
		},
		"printProduction": func(prod *spec.Production) string {
			prec := " -"
			if prod.Precedence != 0 {
				prec = fmt.Sprintf("%2v", prod.Precedence)
			}
			assoc := "-"
			if prod.Associativity != "" {
				assoc = prod.Associativity
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%v →", nonTermName(prod.LHS))
			if len(prod.RHS) > 0 {
				rhs(&b, prod, -1)
			} else {
				fmt.Fprintf(&b, " ε")
			}
			if prod.DynamicPrecedence != 0 {
				fmt.Fprintf(&b, " (dynamic precedence %v)", prod.DynamicPrecedence)
			}
			return fmt.Sprintf("%4v %v %v %v", prod.Number, prec, assoc, b.String())
		},
		"printItem": func(item *spec.Item) string {
			prod := report.Productions[item.Production]

			var b strings.Builder
			fmt.Fprintf(&b, "%v →", nonTermName(prod.LHS))
			rhs(&b, prod, item.Dot)
			return fmt.Sprintf("%4v %v", prod.Number, b.String())
		},
		"printShift": func(tran *spec.Transition) string {
			return fmt.Sprintf("shift  %4v on %v", tran.State, termName(tran.Symbol))
		},
		"printReduce": func(reduce *spec.Reduce) string {
			las := make([]string, len(reduce.LookAhead))
			for i, a := range reduce.LookAhead {
				las[i] = termName(a)
			}
			return fmt.Sprintf("reduce %4v on %v", reduce.Production, strings.Join(las, ", "))
		},
		"printGoTo": func(tran *spec.Transition) string {
			return fmt.Sprintf("goto   %4v on %v", tran.State, nonTermName(tran.Symbol))
		},
		"printSRConflict": func(sr *spec.SRConflict) string {
			var adopted string
			switch {
			case sr.AdoptedState != nil:
				adopted = fmt.Sprintf("shift %v", *sr.AdoptedState)
			case sr.AdoptedProduction != nil:
				adopted = fmt.Sprintf("reduce %v", *sr.AdoptedProduction)
			}
			var resolvedBy string
			switch sr.ResolvedBy {
			case spec.ResolvedByPrec:
				if sr.AdoptedState != nil {
					resolvedBy = fmt.Sprintf("symbol %v has higher precedence than production %v", termName(sr.Symbol), sr.Production)
				} else {
					resolvedBy = fmt.Sprintf("production %v has higher precedence than symbol %v", sr.Production, termName(sr.Symbol))
				}
			case spec.ResolvedByAssoc:
				if sr.AdoptedState != nil {
					resolvedBy = fmt.Sprintf("symbol %v and production %v have the same precedence, and symbol %v has %v associativity", termName(sr.Symbol), sr.Production, termName(sr.Symbol), assocName(report.Terminals[sr.Symbol].Associativity))
				} else {
					resolvedBy = fmt.Sprintf("production %v and symbol %v have the same precedence, and production %v has %v associativity", sr.Production, termName(sr.Symbol), sr.Production, assocName(report.Productions[sr.Production].Associativity))
				}
			case spec.ResolvedByShift:
				resolvedBy = fmt.Sprintf("symbol %v and production %v don't define a precedence comparison (default rule)", termName(sr.Symbol), sr.Production)
			default:
				resolvedBy = "?"
			}
			return fmt.Sprintf("shift/reduce conflict (shift %v, reduce %v) on %v: %v adopted because %v", sr.State, sr.Production, termName(sr.Symbol), adopted, resolvedBy)
		},
		"printRRConflict": func(rr *spec.RRConflict) string {
			var resolvedBy string
			switch rr.ResolvedBy {
			case spec.ResolvedByProdOrder:
				resolvedBy = fmt.Sprintf("production %v and %v don't define a precedence comparison (default rule)", rr.Production1, rr.Production2)
			default:
				resolvedBy = "?"
			}
			return fmt.Sprintf("reduce/reduce conflict (%v, %v) on %v: reduce %v adopted because %v", rr.Production1, rr.Production2, termName(rr.Symbol), rr.AdoptedProduction, resolvedBy)
		},
	}

	tmpl, err := template.New("").Funcs(fns).Parse(reportTemplate)
	if err != nil {
		return err
	}
	return tmpl.Execute(w, report)
}
