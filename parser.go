package sqlbook

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ParseOptions are the options for Parse and ParseString
type ParseOptions struct {
	// Source is the name of the source (used in errors and QueryDefinition.Source)
	Source string
	// Dialect attributes every query in the source with a dialect tag (a name prefix still wins)
	Dialect string
	// Variants is the dialect name prefixes (DefaultVariants if nil)
	Variants Variants
}

// annotationLexer tokenizes the text of an annotation comment (after the leading "--")
var annotationLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_\-]*`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Suffix", Pattern: `<!|\*!|[!^$#&]`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "Other", Pattern: `\S`},
})

// rawAnnotation is the parse tree of "name: get_all^" and "record_class: Blog"
type rawAnnotation struct {
	Pos    lexer.Position
	Key    string   `parser:"@Ident \":\""`
	Value  string   `parser:"@Ident?"`
	Suffix string   `parser:"@Suffix?"`
	Rest   []string `parser:"@(Ident | \":\" | Suffix | Other)*"`
}

var annotationParser = participle.MustBuild[rawAnnotation](
	participle.Lexer(annotationLexer),
	participle.Elide("Whitespace"),
)

var (
	nameMarker        = regexp.MustCompile(`^\s*--\s*name\s*:`)
	recordClassMarker = regexp.MustCompile(`^\s*--\s*record_class\s*:`)
)

const (
	keyName        = "name"
	keyRecordClass = "record_class"
)

// ParseString parses annotated sql source text into query definitions (in source order)
func ParseString(source string, opts ParseOptions) ([]QueryDefinition, error) {
	return Parse(strings.NewReader(source), opts)
}

// Parse reads annotated sql source into query definitions (in source order)
//
// a definition starts at a "-- name: <name><suffix>" line, is followed by optional "--" doc lines (and
// an optional "-- record_class: <type>" line) and runs until the next name line (or end of source)
func Parse(r io.Reader, opts ParseOptions) ([]QueryDefinition, error) {
	p := &sourceParser{
		opts:  opts,
		seen:  map[string]int{},
		lines: bufio.NewScanner(r),
	}
	if p.opts.Variants == nil {
		p.opts.Variants = DefaultVariants
	}
	p.lines.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return p.parse()
}

type sourceParser struct {
	opts    ParseOptions
	lines   *bufio.Scanner
	lineNo  int
	seen    map[string]int
	current *pendingDefinition
	result  []QueryDefinition
}

type pendingDefinition struct {
	def      QueryDefinition
	inHeader bool
	doc      []string
	body     []string
}

func (p *sourceParser) parse() ([]QueryDefinition, error) {
	for p.lines.Scan() {
		p.lineNo++
		line := p.lines.Text()
		if nameMarker.MatchString(line) {
			if err := p.finish(); err != nil {
				return nil, err
			}
			if err := p.start(line); err != nil {
				return nil, err
			}
			continue
		}
		if p.current == nil {
			continue
		}
		if err := p.addLine(line); err != nil {
			return nil, err
		}
	}
	if err := p.lines.Err(); err != nil {
		return nil, err
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return p.result, nil
}

func (p *sourceParser) start(line string) error {
	a, err := p.annotation(line)
	if err != nil {
		return err
	}
	if a.Key != keyName {
		return p.malformed(line, fmt.Sprintf("unexpected annotation %q", a.Key))
	}
	if a.Value == "" {
		return p.malformed(line, "missing query name")
	}
	if len(a.Rest) > 0 {
		return p.malformed(line, fmt.Sprintf("unrecognized operation suffix %q", a.Suffix+strings.Join(a.Rest, "")))
	}
	kind, ok := KindForSuffix(a.Suffix)
	if !ok {
		return p.malformed(line, fmt.Sprintf("unrecognized operation suffix %q", a.Suffix))
	}
	name := strings.ReplaceAll(a.Value, "-", "_")
	if _, exists := p.seen[name]; exists {
		return &DuplicateNameError{Name: name, Source: p.opts.Source, Line: p.lineNo}
	}
	p.seen[name] = p.lineNo
	dialect := p.opts.Variants.dialectOf(name)
	if dialect == "" {
		dialect = p.opts.Dialect
	}
	p.current = &pendingDefinition{
		def: QueryDefinition{
			Name:    name,
			Kind:    kind,
			Dialect: dialect,
			Source:  p.opts.Source,
			Line:    p.lineNo,
		},
		inHeader: true,
	}
	return nil
}

func (p *sourceParser) addLine(line string) error {
	c := p.current
	trimmed := strings.TrimSpace(line)
	if c.inHeader {
		switch {
		case recordClassMarker.MatchString(line):
			if c.def.RecordType != "" {
				return p.malformed(line, "duplicate record_class")
			}
			a, err := p.annotation(line)
			if err != nil {
				return err
			}
			if a.Value == "" || a.Suffix != "" || len(a.Rest) > 0 {
				return p.malformed(line, "invalid record_class")
			}
			c.def.RecordType = a.Value
			return nil
		case strings.HasPrefix(trimmed, "--"):
			c.doc = append(c.doc, strings.TrimRight(strings.TrimPrefix(strings.TrimPrefix(trimmed, "--"), " "), " \t"))
			return nil
		}
		// the first blank or sql line ends the header
		c.inHeader = false
	}
	c.body = append(c.body, line)
	return nil
}

func (p *sourceParser) finish() error {
	c := p.current
	if c == nil {
		return nil
	}
	p.current = nil
	c.def.Doc = strings.TrimSpace(strings.Join(c.doc, "\n"))
	c.def.SQL = strings.TrimSpace(strings.Join(c.body, "\n"))
	if c.def.SQL == "" {
		return &MalformedAnnotationError{
			Source: p.opts.Source,
			Line:   c.def.Line,
			Text:   c.def.Name + c.def.Kind.Suffix(),
			Reason: "no sql statement",
		}
	}
	p.result = append(p.result, c.def)
	return nil
}

func (p *sourceParser) annotation(line string) (*rawAnnotation, error) {
	text := strings.TrimPrefix(strings.TrimSpace(line), "--")
	a, err := annotationParser.ParseString(sourceName(p.opts.Source), text)
	if err != nil {
		return nil, p.malformed(line, err.Error())
	}
	return a, nil
}

func (p *sourceParser) malformed(line string, reason string) error {
	return &MalformedAnnotationError{
		Source: p.opts.Source,
		Line:   p.lineNo,
		Text:   strings.TrimSpace(line),
		Reason: reason,
	}
}
