package js

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/dop251/goja"
)

// DiagnosticStage names the load step that rejected a module.
type DiagnosticStage string

const (
	// DiagnosticStageCompile captures syntax and parsing failures.
	DiagnosticStageCompile DiagnosticStage = "compile"
	// DiagnosticStageExecute captures errors thrown while evaluating the module.
	DiagnosticStageExecute DiagnosticStage = "execute"
	// DiagnosticStageValidation captures metadata problems.
	DiagnosticStageValidation DiagnosticStage = "validation"
)

// Diagnostic describes one reason a module failed to load.
type Diagnostic struct {
	Stage   DiagnosticStage `json:"stage"`
	Message string          `json:"message"`
	Line    int             `json:"line,omitempty"`
	Column  int             `json:"column,omitempty"`
	Hint    string          `json:"hint,omitempty"`
}

// DiagnosticError aggregates the diagnostics of a rejected module.
type DiagnosticError struct {
	message     string
	diagnostics []Diagnostic
	cause       error
}

// NewDiagnosticError constructs a diagnostic error with an optional message and cause.
func NewDiagnosticError(message string, cause error, diagnostics ...Diagnostic) *DiagnosticError {
	return &DiagnosticError{
		message:     strings.TrimSpace(message),
		diagnostics: append([]Diagnostic(nil), diagnostics...),
		cause:       cause,
	}
}

// Error implements the error interface.
func (e *DiagnosticError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.message != "" {
		return e.message
	}
	if len(e.diagnostics) > 0 {
		return e.diagnostics[0].Message
	}
	if e.cause != nil {
		return e.cause.Error()
	}
	return "algorithm module diagnostics"
}

// Unwrap returns the underlying cause.
func (e *DiagnosticError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Diagnostics returns a copy of the aggregated diagnostics.
func (e *DiagnosticError) Diagnostics() []Diagnostic {
	if e == nil || len(e.diagnostics) == 0 {
		return nil
	}
	out := make([]Diagnostic, len(e.diagnostics))
	copy(out, e.diagnostics)
	return out
}

// AsDiagnosticError extracts a DiagnosticError from err's chain.
func AsDiagnosticError(err error) (*DiagnosticError, bool) {
	var diagErr *DiagnosticError
	if err != nil && errors.As(err, &diagErr) {
		return diagErr, true
	}
	return nil, false
}

func compileDiagnostic(err error) Diagnostic {
	diag := Diagnostic{
		Stage:   DiagnosticStageCompile,
		Message: diagnosticMessage(err),
		Hint:    "Fix the JavaScript syntax near the reported location.",
	}
	var syntaxErr *goja.CompilerSyntaxError
	if errors.As(err, &syntaxErr) && syntaxErr != nil {
		if trimmed := strings.TrimSpace(syntaxErr.Message); trimmed != "" {
			diag.Message = trimmed
		}
		if syntaxErr.File != nil {
			pos := syntaxErr.File.Position(syntaxErr.Offset)
			diag.Line = pos.Line
			diag.Column = pos.Column
		}
	}
	return diag
}

func executeDiagnostic(err error) Diagnostic {
	diag := Diagnostic{
		Stage:   DiagnosticStageExecute,
		Message: diagnosticMessage(err),
		Hint:    "Module evaluation must not throw and must export metadata and create.",
	}
	var jsErr *goja.Exception
	if errors.As(err, &jsErr) && jsErr != nil {
		if val := jsErr.Value(); val != nil && !goja.IsUndefined(val) && !goja.IsNull(val) {
			if msg := strings.TrimSpace(val.String()); msg != "" {
				diag.Message = msg
			}
		}
		if stack := jsErr.Stack(); len(stack) > 0 {
			pos := stack[0].Position()
			diag.Line = pos.Line
			diag.Column = pos.Column
		}
	}
	return diag
}

func validationDiagnostics(issues []MetadataIssue) []Diagnostic {
	out := make([]Diagnostic, 0, len(issues))
	for _, issue := range issues {
		message := strings.TrimSpace(issue.Message)
		if message == "" {
			continue
		}
		out = append(out, Diagnostic{
			Stage:   DiagnosticStageValidation,
			Message: message,
			Hint:    strings.TrimSpace(issue.Path),
		})
	}
	return out
}

func diagnosticMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	msg := strings.TrimSpace(err.Error())
	if idx := strings.Index(msg, "\n"); idx > 0 {
		msg = msg[:idx]
	}
	if idx := strings.Index(msg, " at "); idx > 0 && !strings.Contains(msg[idx+4:], " at ") {
		msg = msg[:idx]
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "unknown error"
	}
	const maxLen = 256
	if utf8.RuneCountInString(msg) > maxLen {
		return string([]rune(msg)[:maxLen])
	}
	return msg
}
