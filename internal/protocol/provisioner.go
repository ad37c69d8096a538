package protocol

import (
	"fmt"
	"strconv"

	"github.com/universal-console/dgdconsole/internal/errors"
	"github.com/universal-console/dgdconsole/internal/interfaces"
	"github.com/universal-console/dgdconsole/internal/logging"
)

// ProvisioningOutcome is the value returned by the helper check program.
type ProvisioningOutcome int

const (
	HelperReady     ProvisioningOutcome = 1
	BadPathSuffix   ProvisioningOutcome = -1
	NotCompiled     ProvisioningOutcome = -2
	VersionMismatch ProvisioningOutcome = -3
	OtherFailure    ProvisioningOutcome = -4
)

// String returns the outcome name
func (o ProvisioningOutcome) String() string {
	switch o {
	case HelperReady:
		return "Ready"
	case BadPathSuffix:
		return "BadPathSuffix"
	case NotCompiled:
		return "NotCompiled"
	case VersionMismatch:
		return "VersionMismatch"
	case OtherFailure:
		return "OtherFailure"
	default:
		return fmt.Sprintf("Unknown(%d)", int(o))
	}
}

// HelperSource places the helper's source file where the server can compile
// it. It runs before the first check.
type HelperSource interface {
	EnsureHelperSource(helperPath string) error
}

// SendFunc submits one login-phase command with a raw text reply.
type SendFunc func(payload string, callback interfaces.ResultCallback) error

// Provisioner makes sure the helper object exists, is compiled and has the
// required version. Compiling and the uninstall self-heal are each attempted
// at most once per handshake, so every run terminates.
type Provisioner struct {
	helper interfaces.HelperConfig
	source HelperSource
	send   SendFunc
	output func(string)
	logger *logging.Logger

	installing bool // uninstall of a mismatched helper was issued
	installed  bool // compile was issued and succeeded
	checks     int
}

// NewProvisioner creates a provisioner that talks through send.
func NewProvisioner(helper interfaces.HelperConfig, source HelperSource, send SendFunc, output func(string)) *Provisioner {
	if output == nil {
		output = func(string) {}
	}
	return &Provisioner{
		helper: helper,
		source: source,
		send:   send,
		output: output,
		logger: logging.GetProvisionerLogger(),
	}
}

// Reset clears the guard flags for a new handshake.
func (p *Provisioner) Reset() {
	p.installing = false
	p.installed = false
	p.checks = 0
}

// Checks returns how many check programs were sent since the last Reset.
func (p *Provisioner) Checks() int {
	return p.checks
}

// Run provisions the helper and calls done exactly once, with nil on
// success, unless the connection drops while a reply is outstanding.
func (p *Provisioner) Run(done func(error)) {
	if !p.helper.Install {
		p.output("Automatic installation of the helper is disabled.")
		p.logger.LogProvisioningOutcome(p.helper.Path, "skipped", 0)
		done(nil)
		return
	}

	if p.helper.Path == "" {
		done(p.fail(int(OtherFailure), "helper path is not configured", nil))
		return
	}

	if p.source != nil {
		if err := p.source.EnsureHelperSource(p.helper.Path); err != nil {
			done(p.fail(int(OtherFailure), "could not place helper source: "+err.Error(), err))
			return
		}
	}

	p.check(done)
}

func (p *Provisioner) check(done func(error)) {
	p.checks++
	err := p.send(HelperCheckProgram(p.helper.Path, p.helper.Version), func(r interfaces.CodeResult) {
		p.handleCheck(rawText(r), done)
	})
	if err != nil {
		done(p.fail(int(OtherFailure), "could not send helper check", err))
	}
}

func (p *Provisioner) handleCheck(text string, done func(error)) {
	value, ok := ParseRawValue(text)
	if !ok {
		done(p.fail(int(OtherFailure), "could not find result code", nil))
		return
	}
	code, err := strconv.Atoi(value)
	if err != nil {
		done(p.fail(int(OtherFailure), "invalid result code: "+value, nil))
		return
	}

	outcome := ProvisioningOutcome(code)
	p.logger.LogProvisioningOutcome(p.helper.Path, outcome.String(), code)

	switch outcome {
	case HelperReady:
		done(nil)

	case BadPathSuffix:
		done(p.fail(code, "helper must be a filename ending with .c", nil))

	case NotCompiled:
		if p.installed {
			done(p.fail(code, "helper is still not loaded after compiling it", nil))
			return
		}
		p.compile(done)

	case VersionMismatch:
		if p.installing || p.installed {
			done(p.fail(code, fmt.Sprintf("helper is of wrong version, expected %d", p.helper.Version), nil))
			return
		}
		p.installing = true
		p.output("Upgrading helper...")
		object := HelperObjectName(p.helper.Path)
		err := p.send(UninstallCommand(object), func(r interfaces.CodeResult) {
			p.logger.Debug("Helper uninstall returned", "reply", rawText(r))
			p.check(done)
		})
		if err != nil {
			done(p.fail(code, "could not send helper uninstall", err))
		}

	case OtherFailure:
		done(p.fail(code, "helper check failed on the server", nil))

	default:
		done(p.fail(code, fmt.Sprintf("unknown result code %d, most likely due to an incompatible code command", code), nil))
	}
}

func (p *Provisioner) compile(done func(error)) {
	want := "<" + HelperObjectName(p.helper.Path) + ">"
	err := p.send(CompileCommand(p.helper.Path), func(r interfaces.CodeResult) {
		text := rawText(r)
		if value, ok := ParseRawValue(text); !ok || value != want {
			done(p.fail(int(NotCompiled), "failed to compile helper: "+text, nil))
			return
		}
		p.logger.Info("Helper compiled", "path", p.helper.Path)
		p.installed = true
		p.check(done)
	})
	if err != nil {
		done(p.fail(int(NotCompiled), "could not send compile command", err))
	}
}

func (p *Provisioner) fail(code int, message string, cause error) error {
	p.logger.LogProvisioningOutcome(p.helper.Path, "failed", code)
	return errors.NewProvisioningError("provisioner").
		WithLogger(p.logger).
		WithOperation("provision").
		WithCode(code).
		WithMessage(message).
		WithUserMessage(fmt.Sprintf("Failed to find or install %s: %s", p.helper.Path, message)).
		WithContext("path", p.helper.Path).
		WithContext("version", p.helper.Version).
		WithCause(cause).
		Build()
}

// rawText returns the unframed reply text carried by a login-phase result.
func rawText(r interfaces.CodeResult) string {
	if s, ok := r.Result.(string); ok {
		return s
	}
	return r.Raw
}
