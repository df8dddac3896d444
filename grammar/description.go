package grammar

import (
	"fmt"
	"io"

	verr "github.com/nihei9/reparse/error"
	"gopkg.in/yaml.v3"
)

// Description is the YAML form of a grammar.
//
//	name: expr
//	terminals:
//	  - name: num
//	    pattern: "[0-9]+"
//	  - literal: "+"
//	  - name: ws
//	    pattern: "[ \t\n]+"
//	    skip: true
//	precedence:
//	  - left: ["+"]
//	rules:
//	  - lhs: sum
//	    rhs: [sum, "+", num]
type Description struct {
	Name       string                   `yaml:"name"`
	Start      string                   `yaml:"start"`
	Terminals  []*TerminalDescription   `yaml:"terminals"`
	External   *ExternalDescription     `yaml:"external"`
	Precedence []*PrecedenceDescription `yaml:"precedence"`
	Rules      []*RuleDescription       `yaml:"rules"`
}

type TerminalDescription struct {
	Name    string   `yaml:"name"`
	Literal string   `yaml:"literal"`
	Pattern string   `yaml:"pattern"`
	Modes   []string `yaml:"modes"`
	Skip    bool     `yaml:"skip"`

	line int
}

type ExternalDescription struct {
	Scanner   string   `yaml:"scanner"`
	Terminals []string `yaml:"terminals"`
}

type PrecedenceDescription struct {
	Left  []string `yaml:"left"`
	Right []string `yaml:"right"`

	line int
}

type RuleDescription struct {
	LHS               string   `yaml:"lhs"`
	RHS               []string `yaml:"rhs"`
	Prec              string   `yaml:"prec"`
	DynamicPrecedence int      `yaml:"dynamic_precedence"`

	line int
}

func (d *TerminalDescription) UnmarshalYAML(node *yaml.Node) error {
	type plain TerminalDescription
	if err := node.Decode((*plain)(d)); err != nil {
		return err
	}
	d.line = node.Line
	return nil
}

func (d *PrecedenceDescription) UnmarshalYAML(node *yaml.Node) error {
	type plain PrecedenceDescription
	if err := node.Decode((*plain)(d)); err != nil {
		return err
	}
	d.line = node.Line
	return nil
}

func (d *RuleDescription) UnmarshalYAML(node *yaml.Node) error {
	type plain RuleDescription
	if err := node.Decode((*plain)(d)); err != nil {
		return err
	}
	d.line = node.Line
	return nil
}

// ReadDescription reads a YAML grammar description and returns a builder for it. sourceName appears in
// error messages.
func ReadDescription(r io.Reader, sourceName string) (*Builder, error) {
	var desc Description
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&desc); err != nil {
		return nil, &verr.SpecError{
			Cause:      fmt.Errorf("invalid grammar description: %w", err),
			SourceName: sourceName,
		}
	}
	return desc.Builder(sourceName)
}

// Builder converts the description into a builder.
func (d *Description) Builder(sourceName string) (*Builder, error) {
	b := NewBuilder(d.Name)
	b.sourceName = sourceName
	if d.Start != "" {
		b.Start(d.Start)
	}

	var errs verr.SpecErrors
	for _, t := range d.Terminals {
		switch {
		case t.Literal != "" && t.Name == "" && t.Pattern == "":
			b.Literal(t.Literal, t.Modes...)
		case t.Literal == "" && t.Name != "":
			b.Terminal(t.Name, t.Pattern, t.Modes...)
		default:
			errs = append(errs, &verr.SpecError{
				Cause:      fmt.Errorf("a terminal needs either a literal or a name and a pattern"),
				SourceName: sourceName,
				Row:        t.line,
			})
			continue
		}
		last := b.terms[len(b.terms)-1]
		last.skip = t.Skip
		last.row = t.line
	}
	if d.External != nil {
		b.External(d.External.Scanner, d.External.Terminals...)
	}
	for _, p := range d.Precedence {
		switch {
		case len(p.Left) > 0 && len(p.Right) == 0:
			b.Left(p.Left...)
		case len(p.Right) > 0 && len(p.Left) == 0:
			b.Right(p.Right...)
		default:
			errs = append(errs, &verr.SpecError{
				Cause:      fmt.Errorf("a precedence level needs either left or right terminals"),
				SourceName: sourceName,
				Row:        p.line,
			})
			continue
		}
		b.precs[len(b.precs)-1].row = p.line
	}
	for _, r := range d.Rules {
		rule := b.Rule(r.LHS, r.RHS...).DynamicPrecedence(r.DynamicPrecedence)
		if r.Prec != "" {
			rule.Prec(r.Prec)
		}
		rule.row = r.line
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return b, nil
}
