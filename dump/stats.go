package dump

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/wudi/pclkit/command"
)

// Stats counts visited commands per kind and per parameterized key.
type Stats struct {
	kinds     map[command.Kind]int
	keys      map[string]int
	total     int
	dataBytes int64
}

var _ command.Visitor = (*Stats)(nil)

func NewStats() *Stats {
	return &Stats{kinds: make(map[command.Kind]int), keys: make(map[string]int)}
}

func (s *Stats) Total() int                  { return s.total }
func (s *Stats) Count(kind command.Kind) int { return s.kinds[kind] }
func (s *Stats) KeyCount(key string) int     { return s.keys[key] }
func (s *Stats) DataBytes() int64            { return s.dataBytes }

func (s *Stats) add(kind command.Kind) {
	s.total++
	s.kinds[kind]++
}

func (s *Stats) VisitText(*command.Text)                         { s.add(command.KindText) }
func (s *Stats) VisitControlCharacter(*command.ControlCharacter) { s.add(command.KindControlCharacter) }
func (s *Stats) VisitTwoByte(*command.TwoByte)                   { s.add(command.KindTwoByte) }
func (s *Stats) VisitPJL(*command.PJL)                           { s.add(command.KindPJL) }

func (s *Stats) VisitParameterized(c *command.Parameterized) {
	s.add(command.KindParameterized)
	s.keys[c.Key()]++
	s.dataBytes += int64(c.DataLen())
}

// Report writes the totals followed by the parameterized keys, most frequent
// first.
func (s *Stats) Report(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "commands\t%d\n", s.total)
	for _, k := range []command.Kind{
		command.KindText,
		command.KindControlCharacter,
		command.KindTwoByte,
		command.KindParameterized,
		command.KindPJL,
	} {
		fmt.Fprintf(tw, "  %s\t%d\n", k, s.kinds[k])
	}
	fmt.Fprintf(tw, "data bytes\t%d\n", s.dataBytes)

	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if s.keys[keys[i]] != s.keys[keys[j]] {
			return s.keys[keys[i]] > s.keys[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > 0 {
		fmt.Fprintln(tw, "keys")
	}
	for _, k := range keys {
		fmt.Fprintf(tw, "  %s\t%d\n", k, s.keys[k])
	}
	return tw.Flush()
}
