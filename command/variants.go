package command

import (
	"bytes"

	"github.com/shopspring/decimal"
)

// Text is printable data outside any escape sequence. The bytes are kept
// undecoded because the text parsing method is printer state.
type Text struct {
	offset int64
	text   []byte
}

func NewText(offset int64, text []byte) *Text {
	return &Text{offset: offset, text: clone(text)}
}

// Bytes returns a copy of the text.
func (c *Text) Bytes() []byte    { return clone(c.text) }
func (c *Text) Len() int         { return len(c.text) }
func (c *Text) Offset() int64    { return c.offset }
func (c *Text) Kind() Kind       { return KindText }
func (c *Text) Accept(v Visitor) { v.VisitText(c) }
func (c *Text) Hash() uint64     { return digest(KindText, c.offset, c.text) }
func (c *Text) String() string   { return at(latin1(c.text), c.offset) }
func (*Text) sealed()            {}

func (c *Text) Equal(other Command) bool {
	o, ok := other.(*Text)
	return ok && o.offset == c.offset && bytes.Equal(o.text, c.text)
}

// ControlCharacter is a bare control code (0x00-0x1F except ESC, or 0x7F).
type ControlCharacter struct {
	offset int64
	code   byte
}

func NewControlCharacter(offset int64, code byte) *ControlCharacter {
	return &ControlCharacter{offset: offset, code: code}
}

func (c *ControlCharacter) Code() byte       { return c.code }
func (c *ControlCharacter) Offset() int64    { return c.offset }
func (c *ControlCharacter) Kind() Kind       { return KindControlCharacter }
func (c *ControlCharacter) Accept(v Visitor) { v.VisitControlCharacter(c) }
func (c *ControlCharacter) Hash() uint64 {
	return digest(KindControlCharacter, c.offset, []byte{c.code})
}
func (c *ControlCharacter) String() string { return at(ControlName(c.code), c.offset) }
func (*ControlCharacter) sealed()          {}

func (c *ControlCharacter) Equal(other Command) bool {
	o, ok := other.(*ControlCharacter)
	return ok && o.offset == c.offset && o.code == c.code
}

var controlNames = [0x20]string{
	"nul", "soh", "stx", "etx", "eot", "enq", "ack", "bel",
	"bs", "ht", "lf", "vt", "ff", "cr", "so", "si",
	"dle", "dc1", "dc2", "dc3", "dc4", "nak", "syn", "etb",
	"can", "em", "sub", "esc", "fs", "gs", "rs", "us",
}

// ControlName returns the bracketed ASCII mnemonic of a control code, e.g.
// "<cr>" for 0x0D. Other bytes are rendered as themselves.
func ControlName(code byte) string {
	switch {
	case code < 0x20:
		return "<" + controlNames[code] + ">"
	case code == 0x7F:
		return "<del>"
	default:
		return latin1([]byte{code})
	}
}

// IsControl reports whether b is a control code that stands on its own, i.e.
// 0x00-0x1F or 0x7F without the escape byte.
func IsControl(b byte) bool {
	return (b < 0x20 && b != Esc) || b == 0x7F
}

// TwoByte is an escape sequence made of ESC and a single character.
type TwoByte struct {
	offset int64
	letter byte
}

func NewTwoByte(offset int64, letter byte) *TwoByte {
	return &TwoByte{offset: offset, letter: letter}
}

func (c *TwoByte) Letter() byte     { return c.letter }
func (c *TwoByte) Offset() int64    { return c.offset }
func (c *TwoByte) Kind() Kind       { return KindTwoByte }
func (c *TwoByte) Accept(v Visitor) { v.VisitTwoByte(c) }
func (c *TwoByte) Hash() uint64     { return digest(KindTwoByte, c.offset, []byte{c.letter}) }
func (c *TwoByte) Literal() string  { return EscMarker + latin1([]byte{c.letter}) }
func (c *TwoByte) String() string   { return at(c.Literal(), c.offset) }
func (*TwoByte) sealed()            {}

func (c *TwoByte) Equal(other Command) bool {
	o, ok := other.(*TwoByte)
	return ok && o.offset == c.offset && o.letter == c.letter
}

// Parameterized is the general PCL form ESC group [parameter] value terminator.
// A parameter of 0 means the sequence has no parameter letter (ESC(8U). Data
// holds the binary payload that follows data-carrying commands such as
// ESC*b#W.
type Parameterized struct {
	offset     int64
	group      byte
	parameter  byte
	value      string
	terminator byte
	data       []byte
}

func NewParameterized(offset int64, group, parameter byte, value string, terminator byte) *Parameterized {
	return &Parameterized{
		offset:     offset,
		group:      group,
		parameter:  parameter,
		value:      value,
		terminator: terminator,
	}
}

// NewParameterizedData is NewParameterized with a binary payload.
func NewParameterizedData(offset int64, group, parameter byte, value string, terminator byte, data []byte) *Parameterized {
	c := NewParameterized(offset, group, parameter, value, terminator)
	c.data = clone(data)
	return c
}

func (c *Parameterized) Group() byte      { return c.group }
func (c *Parameterized) Parameter() byte  { return c.parameter }
func (c *Parameterized) Value() string    { return c.value }
func (c *Parameterized) Terminator() byte { return c.terminator }
func (c *Parameterized) Data() []byte     { return clone(c.data) }
func (c *Parameterized) DataLen() int     { return len(c.data) }
func (c *Parameterized) Offset() int64    { return c.offset }
func (c *Parameterized) Kind() Kind       { return KindParameterized }
func (c *Parameterized) Accept(v Visitor) { v.VisitParameterized(c) }
func (*Parameterized) sealed()            {}

// Combined reports whether the command ends with a lowercase terminator and
// therefore continues into the next command of a combined sequence.
func (c *Parameterized) Combined() bool {
	return c.terminator >= 0x60 && c.terminator <= 0x7E
}

// Decimal parses the value field. An empty value is zero.
func (c *Parameterized) Decimal() (decimal.Decimal, error) {
	if c.value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(c.value)
}

// Key identifies the command independently of its value, e.g. "&l#S". The
// terminator is folded to uppercase so that combined and final forms share
// a key.
func (c *Parameterized) Key() string {
	b := make([]byte, 0, 4)
	b = append(b, c.group)
	if c.parameter != 0 {
		b = append(b, c.parameter)
	}
	t := c.terminator
	if t >= 0x60 && t <= 0x7E {
		t -= 0x20
	}
	b = append(b, '#', t)
	return latin1(b)
}

// Literal renders the sequence as it appears on the wire without payload.
func (c *Parameterized) Literal() string {
	b := make([]byte, 0, len(c.value)+3)
	b = append(b, c.group)
	if c.parameter != 0 {
		b = append(b, c.parameter)
	}
	b = append(b, c.value...)
	b = append(b, c.terminator)
	return EscMarker + latin1(b)
}

func (c *Parameterized) String() string { return at(c.Literal(), c.offset) }

func (c *Parameterized) Hash() uint64 {
	return digest(KindParameterized, c.offset,
		[]byte{c.group, c.parameter, c.terminator}, []byte(c.value), c.data)
}

func (c *Parameterized) Equal(other Command) bool {
	o, ok := other.(*Parameterized)
	return ok &&
		o.offset == c.offset &&
		o.group == c.group &&
		o.parameter == c.parameter &&
		o.value == c.value &&
		o.terminator == c.terminator &&
		bytes.Equal(o.data, c.data)
}

// PJL is a Printer Job Language line including its terminator. The line that
// carries the Universal Exit Language starts with the escape byte.
type PJL struct {
	offset int64
	text   []byte
}

func NewPJL(offset int64, text []byte) *PJL {
	return &PJL{offset: offset, text: clone(text)}
}

func (c *PJL) Bytes() []byte    { return clone(c.text) }
func (c *PJL) Offset() int64    { return c.offset }
func (c *PJL) Kind() Kind       { return KindPJL }
func (c *PJL) Accept(v Visitor) { v.VisitPJL(c) }
func (c *PJL) Hash() uint64     { return digest(KindPJL, c.offset, c.text) }
func (c *PJL) String() string   { return at(renderEscapes(c.text), c.offset) }
func (*PJL) sealed()            {}

func (c *PJL) Equal(other Command) bool {
	o, ok := other.(*PJL)
	return ok && o.offset == c.offset && bytes.Equal(o.text, c.text)
}
