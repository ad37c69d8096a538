package mockconsole

import (
	"strconv"
	"strings"
	"time"
)

// DefaultEvaluator understands a handful of expressions: string and integer
// literals, nil, status() and a deliberate "error(<msg>)" failure. Anything
// else fails to compile.
func DefaultEvaluator(expression string) Reply {
	expr := strings.TrimSpace(expression)

	switch {
	case expr == "nil":
		return Reply{Value: nil}

	case expr == "status()":
		return Reply{Value: SampleStatus(time.Now())}

	case len(expr) >= 2 && strings.HasPrefix(expr, `"`) && strings.HasSuffix(expr, `"`):
		if s, err := strconv.Unquote(expr); err == nil {
			return Reply{Value: s}
		}
		return Reply{Value: expr[1 : len(expr)-1]}

	case strings.HasPrefix(expr, "error(") && strings.HasSuffix(expr, ")"):
		msg := strings.Trim(expr[len("error("):len(expr)-1], `"`)
		return Reply{Error: msg}
	}

	if n, err := strconv.Atoi(expr); err == nil {
		return Reply{Value: n}
	}

	return Reply{
		Error:       "Failed to compile expression",
		Diagnostics: []string{"/usr/System/sys/code_assist.c, 1: syntax error"},
	}
}

// SampleStatus returns a plausible 27-element status() array
func SampleStatus(now time.Time) []any {
	start := now.Add(-3725 * time.Second).Unix()
	return []any{
		"DGD 1.7.4",
		int(start),
		int(start - 86400),
		3725,
		1024,        // swap size
		128,         // swap used
		512,         // sector size
		3,           // swap rate 1 min
		11,          // swap rate 5 min
		4 << 20,     // static memory
		3 << 20,     // static used
		64 << 20,    // dynamic memory
		21 << 20,    // dynamic used
		32768,       // object table
		1412,        // objects
		16384,       // callout table
		7,           // short term callouts
		2,           // long term callouts
		200,         // user table
		40,          // editor table
		1048576,     // max string
		65535,       // max array
		9940,        // stack depth
		1000000,     // ticks
		[]any{},     // precompiled
		[]any{6047}, // telnet
		[]any{6048}, // binary
	}
}
