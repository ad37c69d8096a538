package protocol

import (
	"fmt"
	"strings"
)

// HelperObjectName returns the object name of a helper source path, which is
// the path without its ".c" suffix.
func HelperObjectName(path string) string {
	return strings.TrimSuffix(path, ".c")
}

// EscapeString escapes backslashes and double quotes so s can be embedded in
// a string literal.
func EscapeString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// EvaluateThroughHelper builds the evaluate command that runs expr inside
// the privileged helper object.
func EvaluateThroughHelper(object, expr string) string {
	return fmt.Sprintf(`%s("%s")->code("%s")`, EvaluatePrefix, object, EscapeString(expr))
}

// CompileCommand compiles the helper at path with the console's compile command.
func CompileCommand(path string) string {
	return "compile " + path
}

// UninstallCommand asks an installed helper object to remove itself.
func UninstallCommand(object string) string {
	return fmt.Sprintf(`%s"%s"->uninstall()`, EvaluatePrefix, object)
}

// HelperCheckProgram returns a plain evaluate command whose value is one of
// the ProvisioningOutcome codes for the helper at path.
func HelperCheckProgram(path string, version int) string {
	var b strings.Builder
	b.WriteString(EvaluatePrefix)
	fmt.Fprintf(&b, `    p = "%s";`, EscapeString(path))
	fmt.Fprintf(&b, `    v = %d;`, version)
	b.WriteString(`    catch {`)
	b.WriteString(`        if(p[strlen(p)-2..] != ".c") {`)
	b.WriteString(`            return -1;`)
	b.WriteString(`        }`)
	b.WriteString(`        q = p[..strlen(p)-3];`)
	b.WriteString(`        if((o = find_object(q)) == nil) {`)
	b.WriteString(`            return -2;`)
	b.WriteString(`        }`)
	b.WriteString(`        if(o->version() != v) {`)
	b.WriteString(`            return -3;`)
	b.WriteString(`        }`)
	b.WriteString(`    } : {`)
	b.WriteString(`        return -4;`)
	b.WriteString(`    }`)
	b.WriteString(`    return 1;`)
	return b.String()
}

// CanaryExpression is evaluated once through the helper before the session
// is declared ready.
const CanaryExpression = `"Success"`

// StatusExpression returns the driver status array.
const StatusExpression = "status()"
