package scanner

import (
	"bytes"
	"errors"
	"io"
	"math"

	"github.com/shopspring/decimal"
)

type dataKey struct{ group, parameter, terminator byte }

// dataCommands are the sequences whose value field counts the binary bytes
// that follow the terminator.
var dataCommands = map[dataKey]bool{
	{'*', 'b', 'W'}: true, // transfer raster data by row
	{'*', 'b', 'V'}: true, // transfer raster data by plane
	{'*', 'g', 'W'}: true, // configure raster data
	{'(', 's', 'W'}: true, // font header
	{')', 's', 'W'}: true, // character data
	{'(', 'f', 'W'}: true, // symbol set definition
	{'*', 'c', 'W'}: true, // user-defined pattern
	{'&', 'p', 'X'}: true, // transparent print data
	{'*', 'v', 'W'}: true, // configure image data
	{'*', 'o', 'W'}: true, // driver configuration
	{'*', 'm', 'W'}: true, // download dither matrix
	{'*', 'l', 'W'}: true, // color lookup tables
	{'*', 'i', 'W'}: true, // viewing illuminant
	{'&', 'b', 'W'}: true, // AppleTalk configuration
	{'&', 'n', 'W'}: true, // alphanumeric ID
}

func carriesData(group, parameter, terminator byte) bool {
	return dataCommands[dataKey{group, parameter, terminator}]
}

var maxDeclared = decimal.NewFromInt(math.MaxInt32)

// readData reads the payload whose length is the integer part of value.
// Non-positive lengths mean no payload.
func (s *pclScanner) readData(offset int64, value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, grammarErr(offset, "malformed payload length %q", value)
	}
	if d.Sign() <= 0 {
		return nil, nil
	}
	if d.GreaterThan(maxDeclared) {
		return nil, grammarErr(offset, "payload length %s out of range", value)
	}
	n := d.IntPart()
	if s.cfg.MaxDataLength > 0 && n > s.cfg.MaxDataLength {
		return nil, grammarErr(offset, "payload of %d bytes exceeds limit of %d", n, s.cfg.MaxDataLength)
	}
	var buf bytes.Buffer
	copied, err := io.CopyN(&buf, s.src, n)
	if errors.Is(err, io.EOF) {
		return nil, grammarErr(s.src.Tell(), "end of data after %d of %d payload bytes of command at %d", copied, n, offset)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
