// Package dump writes decoded printer commands as text, JSON lines or an
// HTML table, and collects job statistics.
package dump

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/wudi/pclkit/command"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatHTML = "html"
)

type Options struct {
	Format string
	// ShowData adds the hex encoded payload of data-carrying commands.
	ShowData bool
	// Title is used as the HTML page title.
	Title string
}

// Dumper is a command.Visitor that writes every visited command to w. Write
// errors are sticky and reported by Err and Close.
type Dumper struct {
	w    io.Writer
	opts Options
	enc  *json.Encoder
	doc  *html.Node
	rows *html.Node
	err  error
}

var _ command.Visitor = (*Dumper)(nil)

func New(w io.Writer, opts Options) (*Dumper, error) {
	if opts.Format == "" {
		opts.Format = FormatText
	}
	d := &Dumper{w: w, opts: opts}
	switch opts.Format {
	case FormatText:
	case FormatJSON:
		d.enc = json.NewEncoder(w)
		d.enc.SetEscapeHTML(false)
	case FormatHTML:
		d.doc, d.rows = skeleton(opts.Title, opts.ShowData)
	default:
		return nil, fmt.Errorf("unknown dump format %q", opts.Format)
	}
	return d, nil
}

// Dump writes cmd and returns the first write error so far.
func (d *Dumper) Dump(cmd command.Command) error {
	cmd.Accept(d)
	return d.err
}

func (d *Dumper) Err() error { return d.err }

// Close completes the output. HTML documents are only written here.
func (d *Dumper) Close() error {
	if d.err != nil || d.doc == nil {
		return d.err
	}
	if err := html.Render(d.w, d.doc); err != nil {
		d.err = fmt.Errorf("render html: %w", err)
		return d.err
	}
	_, d.err = io.WriteString(d.w, "\n")
	return d.err
}

// record is the JSON form of a command.
type record struct {
	Kind       string `json:"kind"`
	Offset     int64  `json:"offset"`
	Literal    string `json:"literal"`
	Code       *int   `json:"code,omitempty"`
	Name       string `json:"name,omitempty"`
	Letter     string `json:"letter,omitempty"`
	Group      string `json:"group,omitempty"`
	Parameter  string `json:"parameter,omitempty"`
	Value      string `json:"value,omitempty"`
	Terminator string `json:"terminator,omitempty"`
	Key        string `json:"key,omitempty"`
	DataLength int    `json:"data_length,omitempty"`
	Data       string `json:"data,omitempty"`
}

func newRecord(c command.Command) *record {
	return &record{Kind: c.Kind().String(), Offset: c.Offset(), Literal: command.Literal(c)}
}

func (d *Dumper) VisitText(c *command.Text) { d.emit(c, newRecord(c), nil) }

func (d *Dumper) VisitControlCharacter(c *command.ControlCharacter) {
	r := newRecord(c)
	code := int(c.Code())
	r.Code = &code
	r.Name = command.ControlName(c.Code())
	d.emit(c, r, nil)
}

func (d *Dumper) VisitTwoByte(c *command.TwoByte) {
	r := newRecord(c)
	r.Letter = string(rune(c.Letter()))
	d.emit(c, r, nil)
}

func (d *Dumper) VisitParameterized(c *command.Parameterized) {
	r := newRecord(c)
	r.Group = string(rune(c.Group()))
	if c.Parameter() != 0 {
		r.Parameter = string(rune(c.Parameter()))
	}
	r.Value = c.Value()
	r.Terminator = string(rune(c.Terminator()))
	r.Key = c.Key()
	r.DataLength = c.DataLen()
	var data []byte
	if d.opts.ShowData && c.DataLen() > 0 {
		data = c.Data()
		r.Data = hex.EncodeToString(data)
	}
	d.emit(c, r, data)
}

func (d *Dumper) VisitPJL(c *command.PJL) { d.emit(c, newRecord(c), nil) }

func (d *Dumper) emit(c command.Command, r *record, data []byte) {
	if d.err != nil {
		return
	}
	switch d.opts.Format {
	case FormatJSON:
		d.err = d.enc.Encode(r)
	case FormatHTML:
		d.rows.AppendChild(row(r, d.opts.ShowData))
	default:
		line := c.String()
		if len(data) > 0 {
			line += " [" + hex.EncodeToString(data) + "]"
		}
		_, d.err = fmt.Fprintln(d.w, line)
	}
}

func element(a atom.Atom, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func text(s string) *html.Node { return &html.Node{Type: html.TextNode, Data: s} }

func cell(a atom.Atom, s string) *html.Node { return element(a, text(s)) }

// skeleton builds the page and returns it along with the tbody that rows
// are appended to.
func skeleton(title string, showData bool) (doc, rows *html.Node) {
	if title == "" {
		title = "pcldump"
	}
	header := element(atom.Tr,
		cell(atom.Th, "offset"),
		cell(atom.Th, "kind"),
		cell(atom.Th, "command"),
		cell(atom.Th, "length"),
	)
	if showData {
		header.AppendChild(cell(atom.Th, "payload"))
	}
	rows = element(atom.Tbody)
	doc = &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(element(atom.Html,
		element(atom.Head, cell(atom.Title, title)),
		element(atom.Body,
			cell(atom.H1, title),
			element(atom.Table, element(atom.Thead, header), rows),
		),
	))
	return doc, rows
}

func row(r *record, showData bool) *html.Node {
	length := ""
	if r.DataLength > 0 {
		length = strconv.Itoa(r.DataLength)
	}
	tr := element(atom.Tr,
		cell(atom.Td, strconv.FormatInt(r.Offset, 10)),
		cell(atom.Td, r.Kind),
		element(atom.Td, cell(atom.Code, r.Literal)),
		cell(atom.Td, length),
	)
	tr.Attr = append(tr.Attr, html.Attribute{Key: "class", Val: r.Kind})
	if showData {
		tr.AppendChild(cell(atom.Td, r.Data))
	}
	return tr
}
