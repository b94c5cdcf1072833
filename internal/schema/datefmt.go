package schema

import (
	"fmt"
	"strings"
)

var strftimeLayout = map[byte]string{
	'd': "02",
	'e': "_2",
	'm': "01",
	'Y': "2006",
	'y': "06",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'p': "PM",
	'b': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'f': "000000",
	'z': "-0700",
	'Z': "MST",
	'%': "%",
}

// DateLayout converts a strftime format such as "%d/%m/%Y" to a Go time layout.
func DateLayout(format string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(format) {
			return "", fmt.Errorf("date format %q ends with %%", format)
		}
		i++
		layout, ok := strftimeLayout[format[i]]
		if !ok {
			return "", fmt.Errorf("date format %q: unsupported directive %%%c", format, format[i])
		}
		b.WriteString(layout)
	}
	return b.String(), nil
}
