package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissingParam is returned by Bind when the template references a
// parameter the caller did not supply.
var ErrMissingParam = errors.New("missing query parameter")

// Bind rewrites %(name)s placeholders to positional $1..$n arguments and
// returns the argument slice in placeholder order. A name that occurs
// more than once is bound once and reuses its ordinal. The %% escape
// collapses to a literal percent sign.
func Bind(text string, params Params) (string, []any, error) {
	var sb strings.Builder
	sb.Grow(len(text))

	var args []any
	ordinals := make(map[string]int)

	for i := 0; i < len(text); {
		c := text[i]
		if c != '%' {
			sb.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(text) && text[i+1] == '%' {
			sb.WriteByte('%')
			i += 2
			continue
		}
		name, width := placeholderAt(text, i)
		if width == 0 {
			sb.WriteByte(c)
			i++
			continue
		}

		ord, ok := ordinals[name]
		if !ok {
			value, present := params[name]
			if !present {
				return "", nil, fmt.Errorf("%w: %q", ErrMissingParam, name)
			}
			args = append(args, value)
			ord = len(args)
			ordinals[name] = ord
		}
		sb.WriteByte('$')
		sb.WriteString(strconv.Itoa(ord))
		i += width
	}

	return sb.String(), args, nil
}

// placeholderAt reports the parameter name and total token width of a
// %(name)s placeholder starting at position i, or ("", 0) when the text
// at i is not a placeholder.
func placeholderAt(text string, i int) (string, int) {
	if i+1 >= len(text) || text[i+1] != '(' {
		return "", 0
	}
	end := strings.IndexByte(text[i+2:], ')')
	if end < 0 {
		return "", 0
	}
	name := text[i+2 : i+2+end]
	after := i + 2 + end + 1
	if name == "" || after >= len(text) || text[after] != 's' {
		return "", 0
	}
	return name, after + 1 - i
}
