package protocol

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/universal-console/dgdconsole/internal/interfaces"
)

// ErrMalformedFrame is returned when a frame body is not a reply object.
var ErrMalformedFrame = errors.New("malformed reply frame")

// compileErrorPattern matches "<absolute-path>, <line>: <message>" lines. A
// frame that follows a prompt starts with the blank after the "#".
var compileErrorPattern = regexp.MustCompile(`(?m)^[ \t]*(/[^\r\n]*?), ([0-9]+): ([^\r\n]*)\r?$`)

// rawValuePattern matches the "$<n> = <value>" echo of the plain code command.
var rawValuePattern = regexp.MustCompile(`(?m)^\$\d+ = ([^\r\n]*)`)

// ExtractCompileErrors removes compile diagnostics from a frame body and
// returns the remaining text together with the diagnostics in order.
func ExtractCompileErrors(body string) (string, []interfaces.CompileError) {
	matches := compileErrorPattern.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return body, nil
	}

	var (
		diags    []interfaces.CompileError
		stripped strings.Builder
		last     int
	)
	for _, m := range matches {
		line, _ := strconv.Atoi(body[m[4]:m[5]])
		diags = append(diags, interfaces.CompileError{
			File:    body[m[2]:m[3]],
			Line:    line,
			Message: body[m[6]:m[7]],
			Raw:     strings.TrimSpace(body[m[0]:m[1]]),
		})
		stripped.WriteString(body[last:m[0]])
		last = m[1]
	}
	stripped.WriteString(body[last:])

	return stripped.String(), diags
}

// ParseCodeResult parses one frame body into a CodeResult.
//
// On ErrMalformedFrame the returned result still carries the compile
// diagnostics and, when it could be recovered, the reply id; ID is -1
// otherwise.
func ParseCodeResult(body string) (interfaces.CodeResult, error) {
	stripped, diags := ExtractCompileErrors(body)

	var prefix string
	for _, d := range diags {
		prefix += d.Raw + "\n"
	}

	result := interfaces.CodeResult{ID: -1, CompileErrors: diags}

	literal, err := NormalizeLiteral(strings.TrimSpace(stripped))
	result.Raw = literal
	if err != nil {
		result.Error = prefix + err.Error()
		return result, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	if !gjson.Valid(literal) {
		if id := gjson.Get(literal, "id"); id.Type == gjson.Number {
			result.ID = int(id.Int())
		}
		result.Error = prefix + "unparsable reply: " + abbreviate(literal, 80)
		return result, fmt.Errorf("%w: %s", ErrMalformedFrame, abbreviate(literal, 80))
	}

	doc := gjson.Parse(literal)
	id := doc.Get("id")
	if !doc.IsObject() || id.Type != gjson.Number {
		result.Error = prefix + "reply carries no id"
		return result, fmt.Errorf("%w: no id", ErrMalformedFrame)
	}
	result.ID = int(id.Int())

	success := doc.Get("success")
	result.Success = success.Type == gjson.True || (success.Type == gjson.Number && success.Num == 1)

	// A successful reply without a result field means "found nothing".
	result.Result = resultValue(doc.Get("result"))

	if !result.Success {
		errField := doc.Get("error")
		if errField.Type != gjson.Null {
			result.Error = errField.String()
		}
		result.Error = prefix + result.Error
	}

	return result, nil
}

// resultValue converts a gjson value into plain Go values. Integral numbers
// become int, other numbers float64, mappings map[string]any and arrays []any.
func resultValue(r gjson.Result) any {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.String:
		return r.Str
	case gjson.Number:
		if !strings.ContainsAny(r.Raw, ".eE") {
			if n, err := strconv.Atoi(r.Raw); err == nil {
				return n
			}
		}
		return r.Num
	case gjson.JSON:
		if r.IsArray() {
			items := make([]any, 0)
			r.ForEach(func(_, v gjson.Result) bool {
				items = append(items, resultValue(v))
				return true
			})
			return items
		}
		mapping := make(map[string]any)
		r.ForEach(func(k, v gjson.Result) bool {
			mapping[k.String()] = resultValue(v)
			return true
		})
		return mapping
	}
	return nil
}

// NormalizeLiteral rewrites the runtime's literal notation into JSON:
// `([ k: v ])` mappings become objects, `({ a, b })` arrays become arrays,
// `nil` becomes null and trailing commas are dropped. JSON input passes
// through unchanged.
func NormalizeLiteral(s string) (string, error) {
	out := make([]byte, 0, len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			out = append(out, c)
		case c == '(' && i+1 < len(s) && s[i+1] == '[':
			out = append(out, '{')
			i++
		case c == '(' && i+1 < len(s) && s[i+1] == '{':
			out = append(out, '[')
			i++
		case c == ']' && i+1 < len(s) && s[i+1] == ')':
			out = closeContainer(out, '}')
			i++
		case c == '}' && i+1 < len(s) && s[i+1] == ')':
			out = closeContainer(out, ']')
			i++
		case c == '}' || c == ']':
			out = closeContainer(out, c)
		case c == 'n' && strings.HasPrefix(s[i:], "nil") && wordBoundary(s, i, i+3):
			out = append(out, "null"...)
			i += 2
		default:
			out = append(out, c)
		}
	}

	if inString {
		return "", fmt.Errorf("unterminated string literal")
	}
	return string(out), nil
}

// closeContainer appends a closing bracket, dropping a trailing comma and
// the whitespace after it.
func closeContainer(out []byte, c byte) []byte {
	end := len(out)
	for end > 0 && isSpace(out[end-1]) {
		end--
	}
	if end > 0 && out[end-1] == ',' {
		out = out[:end-1]
	}
	return append(out, c)
}

func wordBoundary(s string, start, end int) bool {
	isIdent := func(b byte) bool {
		return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
	}
	if start > 0 && isIdent(s[start-1]) {
		return false
	}
	return end >= len(s) || !isIdent(s[end])
}

// ParseRawValue extracts <value> from the first "$<n> = <value>" line of a
// raw console reply.
func ParseRawValue(text string) (string, bool) {
	m := rawValuePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// RawReply wraps unframed login-phase text as a successful result.
func RawReply(text string) interfaces.CodeResult {
	return interfaces.CodeResult{
		ID:      0,
		Success: true,
		Result:  text,
		Raw:     text,
	}
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
