package sqlbook

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Bind rewrites the ":name" placeholders in query into the given placeholder style and returns the
// matching argument list
//
// args may be nil, Named, map[string]any, Positional or []any
func Bind(query string, style PlaceholderStyle, args any, policy UnusedParameters) (string, []any, error) {
	ba, err := normalizeArgs(args)
	if err != nil {
		return "", nil, err
	}
	return compileSQL(query).bind("", style, ba, policy)
}

type placeholder struct {
	start int
	end   int
	name  string
}

// compiledSQL is sql text with its placeholders located (once, at build time)
type compiledSQL struct {
	text    string
	holders []placeholder
	// names is the distinct placeholder names in order of first appearance
	names []string
	index map[string]int
}

func compileSQL(text string) *compiledSQL {
	c := &compiledSQL{
		text:  text,
		index: map[string]int{},
	}
	n := len(text)
	for i := 0; i < n; i++ {
		switch ch := text[i]; {
		case ch == '\'' || ch == '"' || ch == '`':
			i = skipQuoted(text, i, ch)
		case ch == '-' && i+1 < n && text[i+1] == '-':
			i = skipToEOL(text, i)
		case ch == '/' && i+1 < n && text[i+1] == '*':
			i = skipBlockComment(text, i)
		case ch == ':':
			if i+1 < n && text[i+1] == ':' {
				// type cast
				i++
				continue
			}
			j := i + 1
			if j < n && isIdentStart(text[j]) {
				for j < n && isIdentChar(text[j]) {
					j++
				}
				name := text[i+1 : j]
				c.holders = append(c.holders, placeholder{start: i, end: j, name: name})
				if _, ok := c.index[name]; !ok {
					c.index[name] = len(c.names)
					c.names = append(c.names, name)
				}
				i = j - 1
			}
		}
	}
	return c
}

func skipQuoted(text string, i int, quote byte) int {
	for j := i + 1; j < len(text); j++ {
		if text[j] == quote {
			if j+1 < len(text) && text[j+1] == quote {
				j++
				continue
			}
			return j
		}
	}
	return len(text) - 1
}

func skipToEOL(text string, i int) int {
	if nl := strings.IndexByte(text[i:], '\n'); nl >= 0 {
		return i + nl
	}
	return len(text) - 1
}

func skipBlockComment(text string, i int) int {
	if end := strings.Index(text[i+2:], "*/"); end >= 0 {
		return i + 2 + end + 1
	}
	return len(text) - 1
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}

// values resolves the value for every distinct placeholder name
func (c *compiledSQL) values(queryName string, args boundArgs, policy UnusedParameters) ([]any, error) {
	values := make([]any, len(c.names))
	var unused []string
	if args.isNamed {
		for i, name := range c.names {
			v, ok := args.named[name]
			if !ok {
				return nil, &MissingParameterError{Query: queryName, Name: name}
			}
			values[i] = v
		}
		for k := range args.named {
			if _, ok := c.index[k]; !ok {
				unused = append(unused, k)
			}
		}
		sort.Strings(unused)
	} else {
		if len(args.positional) < len(c.names) {
			return nil, &MissingParameterError{Query: queryName, Name: c.names[len(args.positional)]}
		}
		copy(values, args.positional)
		for i := len(c.names); i < len(args.positional); i++ {
			unused = append(unused, "["+strconv.Itoa(i)+"]")
		}
	}
	if len(unused) > 0 && policy == ErrorOnUnused {
		return nil, &UnusedParameterError{Query: queryName, Names: unused}
	}
	return values, nil
}

func (c *compiledSQL) bind(queryName string, style PlaceholderStyle, args boundArgs, policy UnusedParameters) (string, []any, error) {
	if len(c.holders) == 0 && !args.isNamed {
		// already in native form - positional values pass straight through
		return c.text, args.positional, nil
	}
	values, err := c.values(queryName, args, policy)
	if err != nil {
		return "", nil, err
	}
	return c.render(style, values)
}

func (c *compiledSQL) render(style PlaceholderStyle, values []any) (string, []any, error) {
	if len(c.holders) == 0 {
		return c.text, nil, nil
	}
	var sb strings.Builder
	sb.Grow(len(c.text) + len(c.holders)*2)
	var out []any
	if style == Question {
		out = make([]any, 0, len(c.holders))
	} else {
		out = make([]any, len(c.names))
	}
	last := 0
	for _, h := range c.holders {
		sb.WriteString(c.text[last:h.start])
		last = h.end
		idx := c.index[h.name]
		switch style {
		case Question:
			sb.WriteByte('?')
			out = append(out, values[idx])
		case Dollar:
			sb.WriteString("$" + strconv.Itoa(idx+1))
			out[idx] = values[idx]
		case At:
			sb.WriteString("@p" + strconv.Itoa(idx+1))
			out[idx] = values[idx]
		case NamedStyle:
			sb.WriteString(":" + h.name)
			out[idx] = sql.Named(h.name, values[idx])
		default:
			return "", nil, fmt.Errorf("unknown placeholder style: %d", style)
		}
	}
	sb.WriteString(c.text[last:])
	return sb.String(), out, nil
}
