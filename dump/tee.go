package dump

import "github.com/wudi/pclkit/command"

// Tee returns a Visitor that forwards every command to each of vs in order.
func Tee(vs ...command.Visitor) command.Visitor { return tee(vs) }

type tee []command.Visitor

func (t tee) VisitText(c *command.Text) {
	for _, v := range t {
		v.VisitText(c)
	}
}

func (t tee) VisitControlCharacter(c *command.ControlCharacter) {
	for _, v := range t {
		v.VisitControlCharacter(c)
	}
}

func (t tee) VisitTwoByte(c *command.TwoByte) {
	for _, v := range t {
		v.VisitTwoByte(c)
	}
}

func (t tee) VisitParameterized(c *command.Parameterized) {
	for _, v := range t {
		v.VisitParameterized(c)
	}
}

func (t tee) VisitPJL(c *command.PJL) {
	for _, v := range t {
		v.VisitPJL(c)
	}
}
