package debug

import (
	"fmt"
	"strings"
)

const (
	bytesPerRow = 16
	hexDigits   = "0123456789ABCDEF"

	dumpHeader = "       00 01 02 03 04 05 06 07 08 09 0A 0B 0C 0D 0E 0F  "

	// asciiColumn is where the character column starts on every row.
	asciiColumn = len(dumpHeader)
)

var dumpRule = " " + strings.Repeat("-", asciiColumn+bytesPerRow-1)

// Dump writes data as a hex and ASCII table, 16 bytes per row:
//
//	       00 01 02 03 04 05 06 07 08 09 0A 0B 0C 0D 0E 0F  0123456789ABCDEF
//	 -----------------------------------------------------------------------
//	 00000 01 03 0C 00                                      ....
//
// Bytes outside ' '..'~', and the '\\' and '%' characters, print as '.'.
func (c *Console) Dump(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyDump
	}

	if err := c.write(dumpHeader + hexDigits + "\n"); err != nil {
		return err
	}
	if err := c.write(dumpRule + "\n"); err != nil {
		return err
	}
	for off := 0; off < len(data); off += bytesPerRow {
		if err := c.write(dumpRow(off, data[off:min(off+bytesPerRow, len(data))])); err != nil {
			return err
		}
	}
	return c.write("\n")
}

// DumpZone is Dump gated on zone.
func (c *Console) DumpZone(zone Zone, data []byte) error {
	if !zonesCompiled || !c.Enabled(zone) {
		return nil
	}
	return c.Dump(data)
}

func dumpRow(off int, chunk []byte) string {
	row := make([]byte, 0, asciiColumn+bytesPerRow+1)
	row = fmt.Appendf(row, " %05X ", off)
	for _, b := range chunk {
		row = append(row, hexDigits[b>>4], hexDigits[b&0x0F], ' ')
	}
	for len(row) < asciiColumn {
		row = append(row, ' ')
	}
	for _, b := range chunk {
		if b < ' ' || b > '~' || b == '\\' || b == '%' {
			b = '.'
		}
		row = append(row, b)
	}
	return string(append(row, '\n'))
}
