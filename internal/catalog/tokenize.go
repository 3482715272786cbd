package catalog

import "strings"

// Tokenize splits one line of CSV text into its fields.
//
// Quoted fields may contain commas, and a doubled quote inside a quoted field
// yields a single literal quote. The final field is always emitted, so an
// empty line produces one empty field. An unterminated quote is not an error:
// the remainder of the line is taken as quoted content.
func Tokenize(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				current.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}

	return append(fields, current.String())
}
