package invoker

import "strings"

// HasMarker reports whether line contains one of markers as a whole
// token, where tokens are separated by ',', ' ', '{' and ':'. Markers are
// usually quoted field names such as `"date"`. An empty marker set
// accepts every line.
func HasMarker(line string, markers []string) bool {
	if len(markers) == 0 {
		return true
	}

	tokens := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '{' || r == ':'
	})

	for _, tok := range tokens {
		for _, m := range markers {
			if tok == m {
				return true
			}
		}
	}
	return false
}
