package gate

import "strings"

type Kind uint8

const (
	KindException Kind = iota
	KindLog
)

// ParseKind treats anything other than "log" as an exception.
func ParseKind(s string) Kind {
	if strings.EqualFold(s, "log") {
		return KindLog
	}
	return KindException
}

func (k Kind) String() string {
	if k == KindLog {
		return "log"
	}
	return "exception"
}

// Severity mirrors the engine's log types.
type Severity uint8

const (
	SeverityLog Severity = iota
	SeverityWarning
	SeverityAssert
	SeverityError
	SeverityException
)

func ParseSeverity(s string) Severity {
	switch strings.ToLower(s) {
	case "warning", "warn":
		return SeverityWarning
	case "assert":
		return SeverityAssert
	case "error":
		return SeverityError
	case "exception":
		return SeverityException
	default:
		return SeverityLog
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityAssert:
		return "assert"
	case SeverityError:
		return "error"
	case SeverityException:
		return "exception"
	case SeverityLog:
		return "log"
	}
	return "log"
}

// Event is a single error signal raised by an application: either an unhandled
// exception or a log record.
type Event struct {
	Kind     Kind
	Severity Severity
	// Type is the exception type name, empty for log records.
	Type    string
	Message string
	Stack   string
	// Editor is set when the event was raised inside the development environment.
	Editor bool
}

func (e *Event) isErrorSignal() bool {
	if e == nil {
		return true
	}
	if e.Kind == KindException {
		return true
	}
	return e.Severity == SeverityError || e.Severity == SeverityException
}
