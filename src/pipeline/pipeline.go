package pipeline

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var pipelineLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[{},]`},
	{Name: "comment", Pattern: `#[^\n]*`},
	{Name: "whitespace", Pattern: `\s+`},
})

// Parser parses textual pipeline definitions into their AST form.
type Parser struct {
	parser *participle.Parser[Definition]
}

func New() (*Parser, error) {
	parser, err := participle.Build[Definition](
		participle.Lexer(pipelineLexer),
		participle.CaseInsensitive("Ident"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build parser: %w", err)
	}

	return &Parser{parser: parser}, nil
}

// Parse reads a pipeline definition. The result still needs Build to resolve
// function names and assemble runnable graphs.
func (p *Parser) Parse(input string) (*Definition, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	definition, err := p.parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	if err := validateDefinition(definition); err != nil {
		return nil, err
	}
	return definition, nil
}

func validateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("pipeline definition is empty")
	}
	return nil
}

func validateDefinition(definition *Definition) error {
	seen := map[string]bool{}
	for _, decl := range definition.Graphs {
		name := strings.ToLower(decl.Name)
		if seen[name] {
			return fmt.Errorf("duplicate graph name %q", decl.Name)
		}
		seen[name] = true
	}
	if definition.Return != nil && !seen[strings.ToLower(*definition.Return)] {
		return fmt.Errorf("return references unknown graph %q", *definition.Return)
	}
	return nil
}
