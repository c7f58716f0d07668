// Package command defines the closed set of printer commands produced by the
// PCL/PJL scanner and the Visitor contract used to consume them.
package command

import (
	"encoding/binary"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/encoding/charmap"
)

// Esc is the byte that introduces every PCL escape sequence.
const Esc = 0x1B

// EscMarker replaces the escape byte in rendered commands.
const EscMarker = "<esc>"

// Kind names the variant of a Command.
type Kind int

const (
	KindText Kind = iota
	KindControlCharacter
	KindTwoByte
	KindParameterized
	KindPJL
)

var kindNames = [...]string{
	KindText:             "text",
	KindControlCharacter: "control",
	KindTwoByte:          "twobyte",
	KindParameterized:    "parameterized",
	KindPJL:              "pjl",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Command is a single decoded printer command. The set of implementations is
// closed: *Text, *ControlCharacter, *TwoByte, *Parameterized and *PJL.
type Command interface {
	// Offset is the position of the command's first byte in the data stream.
	Offset() int64
	Kind() Kind
	// Accept dispatches the command to the Visitor method matching its type.
	Accept(v Visitor)
	Equal(other Command) bool
	Hash() uint64
	String() string

	sealed()
}

// Visitor handles every command variant. New consumers (dumpers, statistics,
// rewriters) implement Visitor without touching the command types.
type Visitor interface {
	VisitText(c *Text)
	VisitControlCharacter(c *ControlCharacter)
	VisitTwoByte(c *TwoByte)
	VisitParameterized(c *Parameterized)
	VisitPJL(c *PJL)
}

// digest computes a process-independent 64-bit BLAKE2b hash over the kind,
// the offset and the length-prefixed field values.
func digest(kind Kind, offset int64, fields ...[]byte) uint64 {
	h, err := blake2b.New(8, nil)
	if err != nil {
		panic(err) // size 8 without key is always valid
	}
	var hdr [9]byte
	hdr[0] = byte(kind)
	binary.BigEndian.PutUint64(hdr[1:], uint64(offset))
	h.Write(hdr[:])
	for _, f := range fields {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(f)))
		h.Write(n[:])
		h.Write(f)
	}
	return binary.BigEndian.Uint64(h.Sum(nil))
}

// latin1 decodes raw bytes as ISO-8859-1. Text encoding depends on printer
// state the scanner does not track, so rendering picks the byte-preserving
// single-byte charset.
func latin1(b []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// renderEscapes decodes b as ISO-8859-1 with every escape byte replaced by
// EscMarker.
func renderEscapes(b []byte) string {
	var sb strings.Builder
	start := 0
	for i, c := range b {
		if c != Esc {
			continue
		}
		sb.WriteString(latin1(b[start:i]))
		sb.WriteString(EscMarker)
		start = i + 1
	}
	sb.WriteString(latin1(b[start:]))
	return sb.String()
}

func at(literal string, offset int64) string {
	return literal + "@" + strconv.FormatInt(offset, 10)
}

// Literal renders c like String but without the offset suffix.
func Literal(c Command) string {
	return strings.TrimSuffix(c.String(), "@"+strconv.FormatInt(c.Offset(), 10))
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
