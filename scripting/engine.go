// Package scripting selects commands with JavaScript filter expressions.
package scripting

import (
	"context"

	"golang.org/x/text/encoding/charmap"

	"github.com/wudi/pclkit/command"
)

// Filter decides whether a command is kept.
type Filter interface {
	Match(ctx context.Context, cmd command.Command) (bool, error)
}

// binder fills the properties of the script's cmd object. Every property is
// present for every kind so that expressions never hit undefined.
type binder map[string]interface{}

func bind(cmd command.Command) binder {
	b := binder{
		"kind":       cmd.Kind().String(),
		"offset":     cmd.Offset(),
		"text":       "",
		"code":       nil,
		"letter":     "",
		"group":      "",
		"parameter":  "",
		"value":      "",
		"terminator": "",
		"dataLength": 0,
		"literal":    command.Literal(cmd),
	}
	cmd.Accept(b)
	return b
}

func (b binder) VisitText(c *command.Text) { b["text"] = decode(c.Bytes()) }

func (b binder) VisitControlCharacter(c *command.ControlCharacter) { b["code"] = int(c.Code()) }

func (b binder) VisitTwoByte(c *command.TwoByte) { b["letter"] = string(rune(c.Letter())) }

func (b binder) VisitParameterized(c *command.Parameterized) {
	b["group"] = string(rune(c.Group()))
	if c.Parameter() != 0 {
		b["parameter"] = string(rune(c.Parameter()))
	}
	b["value"] = c.Value()
	b["terminator"] = string(rune(c.Terminator()))
	b["dataLength"] = c.DataLen()
}

func (b binder) VisitPJL(c *command.PJL) { b["text"] = decode(c.Bytes()) }

func decode(p []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(p)
	if err != nil {
		return string(p)
	}
	return string(s)
}
