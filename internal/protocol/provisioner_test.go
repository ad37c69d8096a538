package protocol

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-console/dgdconsole/internal/errors"
	"github.com/universal-console/dgdconsole/internal/interfaces"
)

const testHelperPath = "/usr/System/sys/code_assist.c"

// scriptedConsole answers provisioning commands from a fixed list of check
// outcomes.
type scriptedConsole struct {
	outcomes     []string
	compileReply string
	sent         []string
	history      int
}

func (s *scriptedConsole) send(payload string, cb interfaces.ResultCallback) error {
	s.sent = append(s.sent, payload)
	s.history++

	var reply string
	switch {
	case strings.HasPrefix(payload, "compile "):
		reply = s.compileReply
	case strings.HasSuffix(payload, "->uninstall()"):
		reply = fmt.Sprintf("$%d = 1\r\n# ", s.history)
	default:
		if len(s.outcomes) == 0 {
			return fmt.Errorf("script exhausted")
		}
		reply = fmt.Sprintf("$%d = %s\r\n# ", s.history, s.outcomes[0])
		s.outcomes = s.outcomes[1:]
	}
	cb(RawReply(reply))
	return nil
}

func (s *scriptedConsole) count(prefix string) int {
	n := 0
	for _, p := range s.sent {
		if strings.HasPrefix(p, prefix) {
			n++
		}
	}
	return n
}

func runProvisioner(t *testing.T, console *scriptedConsole, helper interfaces.HelperConfig) error {
	t.Helper()
	p := NewProvisioner(helper, nil, console.send, nil)

	calls := 0
	var result error
	p.Run(func(err error) {
		calls++
		result = err
	})
	require.Equal(t, 1, calls, "done must be called exactly once")
	return result
}

func defaultHelper() interfaces.HelperConfig {
	return interfaces.HelperConfig{Path: testHelperPath, Version: 11, Install: true}
}

func isProvisioning(err error, code int) bool {
	return stderrors.Is(err, &errors.ContextualError{Type: errors.ErrorTypeProvisioning, Code: code})
}

func TestProvisionerOutcomes(t *testing.T) {
	compiled := "$9 = </usr/System/sys/code_assist>\r\n# "

	tests := []struct {
		name      string
		outcomes  []string
		compile   string
		wantCode  int // 0 means success
		compiles  int
		uninstall int
	}{
		{"already installed", []string{"1"}, compiled, 0, 0, 0},
		{"compile then ready", []string{"-2", "1"}, compiled, 0, 1, 0},
		{"still missing after compile", []string{"-2", "-2"}, compiled, -2, 1, 0},
		{"compile fails", []string{"-2"}, "/usr/System/sys/code_assist.c, 3: syntax error\r\n# ", -2, 1, 0},
		{"self heal", []string{"-3", "-2", "1"}, compiled, 0, 1, 1},
		{"mismatch after self heal", []string{"-3", "-3"}, compiled, -3, 0, 1},
		{"mismatch after compile", []string{"-2", "-3"}, compiled, -3, 1, 0},
		{"bad suffix", []string{"-1"}, compiled, -1, 0, 0},
		{"server failure", []string{"-4"}, compiled, -4, 0, 0},
		{"unknown code", []string{"7"}, compiled, 7, 0, 0},
		{"not a number", []string{"foo"}, compiled, -4, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			console := &scriptedConsole{outcomes: tt.outcomes, compileReply: tt.compile}
			err := runProvisioner(t, console, defaultHelper())

			if tt.wantCode == 0 {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, isProvisioning(err, tt.wantCode), "got %v", err)
			}
			assert.Equal(t, tt.compiles, console.count("compile "))
			assert.Equal(t, tt.uninstall, console.count(`code "/usr/System/sys/code_assist"->uninstall()`))
			assert.Empty(t, console.outcomes, "every scripted check should be consumed")
		})
	}
}

func TestProvisionerMissingResultLine(t *testing.T) {
	p := NewProvisioner(defaultHelper(), nil, func(_ string, cb interfaces.ResultCallback) error {
		cb(RawReply("Error: unknown command\r\n# "))
		return nil
	}, nil)

	var got error
	p.Run(func(err error) { got = err })
	require.Error(t, got)
	assert.Contains(t, got.Error(), "could not find result code")
}

func TestProvisionerInstallDisabled(t *testing.T) {
	var output []string
	sent := 0
	helper := defaultHelper()
	helper.Install = false

	p := NewProvisioner(helper, nil, func(string, interfaces.ResultCallback) error {
		sent++
		return nil
	}, func(s string) { output = append(output, s) })

	var got error
	called := false
	p.Run(func(err error) { called, got = true, err })

	assert.True(t, called)
	assert.NoError(t, got)
	assert.Equal(t, 0, sent)
	assert.Len(t, output, 1)
}

func TestProvisionerRequiresPath(t *testing.T) {
	helper := defaultHelper()
	helper.Path = ""

	err := runProvisioner(t, &scriptedConsole{}, helper)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "helper path is not configured")
}

type failingSource struct{}

func (failingSource) EnsureHelperSource(string) error {
	return fmt.Errorf("include/status.h not found")
}

func TestProvisionerHelperSourceFailure(t *testing.T) {
	console := &scriptedConsole{}
	p := NewProvisioner(defaultHelper(), failingSource{}, console.send, nil)

	var got error
	p.Run(func(err error) { got = err })
	require.Error(t, got)
	assert.True(t, isProvisioning(got, int(OtherFailure)))
	assert.Empty(t, console.sent)
}

func TestProvisionerResetAllowsAnotherSelfHeal(t *testing.T) {
	console := &scriptedConsole{outcomes: []string{"-3", "-3"}}
	p := NewProvisioner(defaultHelper(), nil, console.send, nil)

	var got error
	p.Run(func(err error) { got = err })
	require.Error(t, got)
	assert.Equal(t, 2, p.Checks())

	p.Reset()
	console.outcomes = []string{"-3", "1"}
	p.Run(func(err error) { got = err })
	assert.NoError(t, got)
	assert.Equal(t, 2, console.count(`code "/usr/System/sys/code_assist"->uninstall()`))
}

func TestProvisionerSendFailure(t *testing.T) {
	p := NewProvisioner(defaultHelper(), nil, func(string, interfaces.ResultCallback) error {
		return ErrNotConnected
	}, nil)

	var got error
	p.Run(func(err error) { got = err })
	assert.ErrorIs(t, got, ErrNotConnected)
}

func TestProvisioningOutcomeString(t *testing.T) {
	assert.Equal(t, "NotCompiled", NotCompiled.String())
	assert.Equal(t, "Unknown(9)", ProvisioningOutcome(9).String())
}
