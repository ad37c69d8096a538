package content

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

const prettyIndent = "    "

var stringEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\t", `\t`,
	"\r", `\r`,
)

// FormatValue prints a decoded result value in the runtime's literal
// notation: mappings as `([ "k": v ])` with sorted keys, arrays as
// `({ a, b })`, null as nil. Booleans print as 1 and 0 since the runtime
// has no boolean type. With pretty set, containers span one element per line.
func FormatValue(v any, pretty bool) string {
	var b strings.Builder
	writeValue(&b, v, pretty, 0)
	return b.String()
}

func writeValue(b *strings.Builder, v any, pretty bool, depth int) {
	switch val := v.(type) {
	case nil:
		b.WriteString("nil")
	case string:
		b.WriteByte('"')
		b.WriteString(stringEscaper.Replace(val))
		b.WriteByte('"')
	case bool:
		if val {
			b.WriteString("1")
		} else {
			b.WriteString("0")
		}
	case int:
		b.WriteString(strconv.Itoa(val))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case float64:
		b.WriteString(formatFloat(val))
	case []any:
		writeArray(b, val, pretty, depth)
	case map[string]any:
		writeMapping(b, val, pretty, depth)
	default:
		fmt.Fprint(b, val)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func writeArray(b *strings.Builder, items []any, pretty bool, depth int) {
	if len(items) == 0 {
		b.WriteString("({ })")
		return
	}

	b.WriteString("({")
	for i, item := range items {
		separate(b, i, pretty, depth+1)
		writeValue(b, item, pretty, depth+1)
	}
	closeWith(b, "})", pretty, depth)
}

func writeMapping(b *strings.Builder, mapping map[string]any, pretty bool, depth int) {
	if len(mapping) == 0 {
		b.WriteString("([ ])")
		return
	}

	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString("([")
	for i, k := range keys {
		separate(b, i, pretty, depth+1)
		writeValue(b, k, pretty, depth+1)
		b.WriteString(": ")
		writeValue(b, mapping[k], pretty, depth+1)
	}
	closeWith(b, "])", pretty, depth)
}

func separate(b *strings.Builder, i int, pretty bool, depth int) {
	if i > 0 {
		b.WriteByte(',')
	}
	if pretty {
		b.WriteByte('\n')
		b.WriteString(strings.Repeat(prettyIndent, depth))
	} else {
		b.WriteByte(' ')
	}
}

func closeWith(b *strings.Builder, bracket string, pretty bool, depth int) {
	if pretty {
		b.WriteByte('\n')
		b.WriteString(strings.Repeat(prettyIndent, depth))
	} else {
		b.WriteByte(' ')
	}
	b.WriteString(bracket)
}
