// Package chunktext assembles human readable chunk sources into binary
// chunk streams.
//
//	sg {
//		int 0x122
//		node {
//			name { string "root" } // comment
//			pos { int 1 1 0 float 0 0 0 0 }
//		}
//	}
//
// A chunk is a name (identifier or quoted string) followed by a braced body.
// Values are written as a type keyword (int, float, string, byte, varint)
// followed by one or more literals of that type.
package chunktext

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"

	"github.com/mogaika/scene_browser/chunk"
)

const (
	TOKEN_IDENT = iota
	TOKEN_NUMBER
	TOKEN_STRING
	TOKEN_OPEN
	TOKEN_CLOSE
	TOKEN_COMMENT
)

var lexer *lexmachine.Lexer

func init() {
	lexer = lexmachine.NewLexer()
	lexer.Add([]byte(`[a-zA-Z_][a-zA-Z0-9_\.]*`), getToken(TOKEN_IDENT))
	lexer.Add([]byte(`[\+\-]?0x[0-9a-fA-F]+`), getToken(TOKEN_NUMBER))
	lexer.Add([]byte(`[\+\-]?[0-9]*\.?[0-9]+([eE][\+\-]?[0-9]+)?`), getToken(TOKEN_NUMBER))
	lexer.Add([]byte(`"(\\.|[^"])*"`), getToken(TOKEN_STRING))
	lexer.Add([]byte(`\{`), getToken(TOKEN_OPEN))
	lexer.Add([]byte(`\}`), getToken(TOKEN_CLOSE))
	lexer.Add([]byte(`//[^\n]*`), skip)
	lexer.Add([]byte(`\s+`), skip)
}

func getToken(tokenType int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(tokenType, string(m.Bytes), m), nil
	}
}

func skip(scan *lexmachine.Scanner, match *machines.Match) (interface{}, error) {
	return nil, nil
}

type token struct {
	kind int
	text string
	line int
}

func tokenize(src []byte) ([]token, error) {
	scanner, err := lexer.Scanner(src)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create lexer scanner")
	}

	result := make([]token, 0, 64)
	for itok, err, eos := scanner.Next(); !eos; itok, err, eos = scanner.Next() {
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to parse token")
		}
		tok := itok.(*lexmachine.Token)
		result = append(result, token{kind: tok.Type, text: tok.Value.(string), line: tok.StartLine})
	}
	return result, nil
}

type parser struct {
	toks []token
	pos  int
	w    *chunk.Writer
}

func (p *parser) eof() bool { return p.pos >= len(p.toks) }

func (p *parser) peek(offset int) *token {
	if p.pos+offset < len(p.toks) {
		return &p.toks[p.pos+offset]
	}
	return nil
}

func (p *parser) next() *token {
	t := p.peek(0)
	if t != nil {
		p.pos++
	}
	return t
}

func (p *parser) lastLine() int {
	if len(p.toks) == 0 {
		return 1
	}
	return p.toks[len(p.toks)-1].line
}

// Assemble converts source into chunk stream bytes.
func Assemble(src []byte) ([]byte, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	p := &parser{toks: toks, w: chunk.NewWriter(&buf)}
	for !p.eof() {
		if err := p.item(); err != nil {
			return nil, err
		}
	}
	if err := p.w.Close(); err != nil {
		return nil, errors.Wrapf(err, "Failed to finish stream")
	}
	return buf.Bytes(), nil
}

func (p *parser) item() error {
	tok := p.next()
	if open := p.peek(0); open != nil && open.kind == TOKEN_OPEN && (tok.kind == TOKEN_IDENT || tok.kind == TOKEN_STRING) {
		p.next()
		return p.chunk(tok)
	}
	if tok.kind != TOKEN_IDENT {
		return errors.Errorf("Unexpected %q on line %v", tok.text, tok.line)
	}

	count := 0
	for v := p.peek(0); v != nil && (v.kind == TOKEN_NUMBER || v.kind == TOKEN_STRING); v = p.peek(0) {
		if next := p.peek(1); v.kind == TOKEN_STRING && next != nil && next.kind == TOKEN_OPEN {
			break
		}
		p.next()
		if err := p.value(tok.text, v); err != nil {
			return err
		}
		count++
	}
	if count == 0 {
		return errors.Errorf("Missed value of type %q on line %v", tok.text, tok.line)
	}
	return nil
}

func (p *parser) chunk(nameTok *token) error {
	name := nameTok.text
	if nameTok.kind == TOKEN_STRING {
		var err error
		if name, err = strconv.Unquote(nameTok.text); err != nil {
			return errors.Errorf("Unknown string format on line %v (%q)", nameTok.line, nameTok.text)
		}
	}

	scope := p.w.Begin(name)
	for {
		tok := p.peek(0)
		if tok == nil {
			return errors.Errorf("Chunk %q opened on line %v is not closed at line %v", name, nameTok.line, p.lastLine())
		}
		if tok.kind == TOKEN_CLOSE {
			p.next()
			break
		}
		if err := p.item(); err != nil {
			return errors.Wrapf(err, "In chunk %q", name)
		}
	}
	return scope.End()
}

func (p *parser) value(kind string, tok *token) error {
	wrongType := func() error {
		return errors.Errorf("Value %q is not %s on line %v", tok.text, kind, tok.line)
	}

	if kind == "string" {
		if tok.kind != TOKEN_STRING {
			return wrongType()
		}
		s, err := strconv.Unquote(tok.text)
		if err != nil {
			return errors.Errorf("Unknown string format on line %v (%q)", tok.line, tok.text)
		}
		p.w.WriteString(s)
		return p.w.Err()
	}
	if tok.kind != TOKEN_NUMBER {
		return wrongType()
	}

	switch kind {
	case "int":
		v, err := strconv.ParseInt(tok.text, 0, 32)
		if err != nil {
			return wrongType()
		}
		p.w.WriteInt32(int32(v))
	case "varint":
		v, err := strconv.ParseInt(tok.text, 0, 32)
		if err != nil {
			return wrongType()
		}
		p.w.WriteVarInt(int32(v))
	case "byte":
		v, err := strconv.ParseUint(tok.text, 0, 8)
		if err != nil {
			return wrongType()
		}
		p.w.WriteByte(byte(v))
	case "float":
		v, err := strconv.ParseFloat(tok.text, 32)
		if err != nil {
			return wrongType()
		}
		p.w.WriteFloat32(float32(v))
	default:
		return errors.Errorf("Unknown value type %q on line %v", kind, tok.line)
	}
	return nil
}
