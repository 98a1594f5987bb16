package document

import (
	"bytes"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// kerningSpace is the TJ displacement (thousandths of em) read as a word gap
const kerningSpace = -200

// maxFormDepth bounds nested Form XObjects, which may reference each other
const maxFormDepth = 8

// formResolver returns the decoded content of the Form XObject named name
// and the resolver for the form's own resources
type formResolver func(name string) (content []byte, inner formResolver, ok bool)

type operandKind int

const (
	operandNumber operandKind = iota
	operandString
	operandName
	operandArray
)

type operand struct {
	kind  operandKind
	num   float64
	str   []byte
	items []operand
}

// contentScanner walks a page content stream and rebuilds its text lines.
// Line breaks follow the text positioning operators, so label layouts keep
// one field per line.
type contentScanner struct {
	data     []byte
	pos      int
	operands []operand
	out      *strings.Builder
	lastY    float64
	haveY    bool
	forms    formResolver
	depth    int
}

// textFromContent extracts the visible text of a content stream
func textFromContent(data []byte) string {
	return textFromContentWithForms(data, nil)
}

// textFromContentWithForms also reads the text of the Form XObjects painted
// with Do, at the place they are painted
func textFromContentWithForms(data []byte, forms formResolver) string {
	s := &contentScanner{data: data, out: &strings.Builder{}, forms: forms}
	s.run()
	return normalizeLines(s.out.String())
}

func (s *contentScanner) run() {
	for {
		s.skipSpace()
		if s.pos >= len(s.data) {
			return
		}
		op, ok := s.next()
		if !ok {
			continue
		}
		s.apply(op)
		s.operands = s.operands[:0]
	}
}

// next reads one token. Operands are pushed; an operator name is returned.
func (s *contentScanner) next() (string, bool) {
	c := s.data[s.pos]
	switch {
	case c == '(':
		s.operands = append(s.operands, operand{kind: operandString, str: s.literal()})
	case c == '<' && s.peek(1) == '<':
		s.pos += 2
	case c == '>' && s.peek(1) == '>':
		s.pos += 2
	case c == '<':
		s.operands = append(s.operands, operand{kind: operandString, str: s.hexString()})
	case c == '[':
		s.pos++
		s.operands = append(s.operands, s.array())
	case c == '/':
		s.pos++
		s.operands = append(s.operands, operand{kind: operandName, str: s.regular()})
	case isNumberStart(c):
		tok := s.regular()
		n, err := strconv.ParseFloat(string(tok), 64)
		if err == nil {
			s.operands = append(s.operands, operand{kind: operandNumber, num: n})
		}
	case isDelimiter(c):
		s.pos++
	default:
		op := string(s.regular())
		if op == "ID" {
			s.skipInlineImage()
			return "", false
		}
		return op, true
	}
	return "", false
}

func (s *contentScanner) apply(op string) {
	switch op {
	case "Tj":
		s.show(s.lastString())
	case "'":
		s.newline()
		s.show(s.lastString())
	case "\"":
		s.newline()
		s.show(s.lastString())
	case "TJ":
		if arr, ok := s.lastOperand(operandArray); ok {
			for _, item := range arr.items {
				switch item.kind {
				case operandString:
					s.show(item.str)
				case operandNumber:
					if item.num <= kerningSpace {
						s.space()
					}
				}
			}
		}
	case "Td", "TD":
		if len(s.operands) >= 2 {
			tx, ty := s.operands[len(s.operands)-2].num, s.operands[len(s.operands)-1].num
			if ty != 0 {
				s.newline()
				s.lastY += ty
			} else if tx != 0 {
				s.space()
			}
		}
	case "Tm":
		if len(s.operands) >= 6 {
			y := s.operands[len(s.operands)-1].num
			if s.haveY && y != s.lastY {
				s.newline()
			} else {
				s.space()
			}
			s.lastY, s.haveY = y, true
		}
	case "T*":
		s.newline()
	case "ET":
		s.newline()
	case "Do":
		s.paintForm()
	}
}

func (s *contentScanner) paintForm() {
	if s.forms == nil || s.depth >= maxFormDepth {
		return
	}
	name, ok := s.lastOperand(operandName)
	if !ok {
		return
	}
	content, inner, ok := s.forms(string(name.str))
	if !ok {
		return
	}
	s.newline()
	form := &contentScanner{data: content, out: s.out, forms: inner, depth: s.depth + 1}
	form.run()
	s.newline()
}

func (s *contentScanner) show(raw []byte) {
	if len(raw) == 0 {
		return
	}
	s.out.WriteString(decodeText(raw))
}

func (s *contentScanner) newline() {
	text := s.out.String()
	if text == "" || strings.HasSuffix(text, "\n") {
		return
	}
	s.out.WriteByte('\n')
}

func (s *contentScanner) space() {
	text := s.out.String()
	if text == "" || strings.HasSuffix(text, "\n") || strings.HasSuffix(text, " ") {
		return
	}
	s.out.WriteByte(' ')
}

func (s *contentScanner) lastString() []byte {
	op, ok := s.lastOperand(operandString)
	if !ok {
		return nil
	}
	return op.str
}

func (s *contentScanner) lastOperand(kind operandKind) (operand, bool) {
	if len(s.operands) == 0 {
		return operand{}, false
	}
	op := s.operands[len(s.operands)-1]
	return op, op.kind == kind
}

func (s *contentScanner) peek(offset int) byte {
	if s.pos+offset < len(s.data) {
		return s.data[s.pos+offset]
	}
	return 0
}

func (s *contentScanner) skipSpace() {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if c == '%' {
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
			continue
		}
		if !isSpace(c) {
			return
		}
		s.pos++
	}
}

// regular reads a run of regular characters
func (s *contentScanner) regular() []byte {
	start := s.pos
	for s.pos < len(s.data) && !isSpace(s.data[s.pos]) && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		s.pos++
	}
	return s.data[start:s.pos]
}

// literal reads a (string) with nested parentheses and escapes
func (s *contentScanner) literal() []byte {
	s.pos++
	var buf []byte
	depth := 1
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= len(s.data) {
				return buf
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				buf = append(buf, '\n')
			case 'r':
				buf = append(buf, '\r')
			case 't':
				buf = append(buf, '\t')
			case 'b':
				buf = append(buf, '\b')
			case 'f':
				buf = append(buf, '\f')
			case '\r', '\n':
				if e == '\r' && s.pos < len(s.data) && s.data[s.pos] == '\n' {
					s.pos++
				}
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for i := 0; i < 2 && s.pos < len(s.data) && s.data[s.pos] >= '0' && s.data[s.pos] <= '7'; i++ {
						val = val*8 + int(s.data[s.pos]-'0')
						s.pos++
					}
					buf = append(buf, byte(val))
				} else {
					buf = append(buf, e)
				}
			}
		case '(':
			depth++
			buf = append(buf, c)
		case ')':
			depth--
			if depth == 0 {
				return buf
			}
			buf = append(buf, c)
		default:
			buf = append(buf, c)
		}
	}
	return buf
}

func (s *contentScanner) hexString() []byte {
	s.pos++
	var digits []byte
	for s.pos < len(s.data) && s.data[s.pos] != '>' {
		if c := s.data[s.pos]; !isSpace(c) {
			digits = append(digits, c)
		}
		s.pos++
	}
	s.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out, err := hex.DecodeString(string(digits))
	if err != nil {
		return nil
	}
	return out
}

func (s *contentScanner) array() operand {
	arr := operand{kind: operandArray}
	outer := s.operands
	s.operands = nil
	for {
		s.skipSpace()
		if s.pos >= len(s.data) {
			break
		}
		if s.data[s.pos] == ']' {
			s.pos++
			break
		}
		s.next()
	}
	arr.items = s.operands
	s.operands = outer
	return arr
}

// skipInlineImage jumps over BI ... ID <data> EI
func (s *contentScanner) skipInlineImage() {
	if s.pos < len(s.data) {
		s.pos++
	}
	idx := bytes.Index(s.data[s.pos:], []byte("EI"))
	for idx >= 0 {
		at := s.pos + idx
		before := at == 0 || isSpace(s.data[at-1])
		after := at+2 >= len(s.data) || isSpace(s.data[at+2])
		if before && after {
			s.pos = at + 2
			return
		}
		next := bytes.Index(s.data[at+2:], []byte("EI"))
		if next < 0 {
			break
		}
		idx = at + 2 + next - s.pos
	}
	s.pos = len(s.data)
}

// decodeText maps PDF string bytes to UTF-8. Strings with a UTF-16 byte order
// mark are decoded as such; everything else is read as WinAnsi.
func decodeText(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		if out, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Bytes(raw); err == nil {
			return string(out)
		}
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// normalizeLines trims every line and drops blank ones
func normalizeLines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isNumberStart(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}
