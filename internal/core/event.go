package core

import (
	"cmp"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"strings"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// EventKind tags an Event.
type EventKind string

// Event kinds
const (
	EventAuto                     EventKind = "auto"
	EventIntentMatched            EventKind = "intent_matched"
	EventVariableMatchesOperation EventKind = "variable_matches_operation"
	EventFileReceived             EventKind = "file_received"
	EventCustom                   EventKind = "custom"
)

// Predicate is the condition of a custom event.
type Predicate func(s *Session, params map[string]any) bool

// Event is the trigger of a transition. Only the fields of its Kind are set;
// build events with the constructors below.
type Event struct {
	Kind EventKind

	Intent *types.Intent // intent_matched

	Variable  string    // variable_matches_operation
	Operation Operation // variable_matches_operation
	Target    any       // variable_matches_operation

	FileTypes []string // file_received, empty accepts any file

	Name      string // custom
	Predicate Predicate
	Params    map[string]any
}

// Auto is always true.
func Auto() Event { return Event{Kind: EventAuto} }

// IntentMatched holds while the session's last prediction is intent.
func IntentMatched(intent *types.Intent) Event {
	return Event{Kind: EventIntentMatched, Intent: intent}
}

// VariableMatchesOperation holds when op(session.Get(name), target) is true.
func VariableMatchesOperation(name string, op Operation, target any) Event {
	return Event{Kind: EventVariableMatchesOperation, Variable: name, Operation: op, Target: target}
}

// FileReceived holds while the session has just received a file of one of
// fileTypes, or of any type when none is given.
func FileReceived(fileTypes ...string) Event {
	return Event{Kind: EventFileReceived, FileTypes: fileTypes}
}

// Custom holds when predicate returns true.
func Custom(name string, predicate Predicate, params map[string]any) Event {
	return Event{Kind: EventCustom, Name: name, Predicate: predicate, Params: params}
}

// String returns the event name used in transition logs and monitoring.
func (e Event) String() string {
	if e.Kind == EventCustom && e.Name != "" {
		return e.Name
	}
	return string(e.Kind)
}

// Info describes the event parameters, "" when there are none.
func (e Event) Info() string {
	switch e.Kind {
	case EventIntentMatched:
		if e.Intent != nil {
			return e.Intent.Name
		}
	case EventVariableMatchesOperation:
		return fmt.Sprintf("%s %s %v", e.Variable, e.Operation.Name, e.Target)
	case EventFileReceived:
		return strings.Join(e.FileTypes, ", ")
	case EventCustom:
		if len(e.Params) > 0 {
			return fmt.Sprint(e.Params)
		}
	}
	return ""
}

// holds evaluates the event against the session state. A panicking custom
// predicate is logged and counts as false.
func (e Event) holds(s *Session) (ok bool) {
	switch e.Kind {
	case EventAuto:
		return true
	case EventIntentMatched:
		p := s.prediction
		return s.flags.predictedIntent && p != nil && p.Intent != nil && e.Intent != nil && p.Intent.Name == e.Intent.Name
	case EventVariableMatchesOperation:
		v, found := s.Get(e.Variable)
		return found && e.Operation.Fn != nil && e.Operation.Fn(v, e.Target)
	case EventFileReceived:
		if !s.flags.file || s.file == nil {
			return false
		}
		if len(e.FileTypes) == 0 {
			return true
		}
		for _, t := range e.FileTypes {
			if t == s.file.Type {
				return true
			}
		}
		return false
	case EventCustom:
		if e.Predicate == nil {
			return false
		}
		defer func() {
			if r := recover(); r != nil {
				s.logger().Error("event predicate panicked",
					slog.String("event", e.String()), slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
				ok = false
			}
		}()
		return e.Predicate(s, e.Params)
	}
	return false
}

// Operation is a named binary comparison used by variable_matches_operation
// events.
type Operation struct {
	Name string
	Fn   func(value, target any) bool
}

// Comparison operations. Numbers of any Go numeric type compare by value,
// strings lexically; ordering other values is always false.
var (
	Eq = Operation{"==", func(a, b any) bool {
		if c, ok := compare(a, b); ok {
			return c == 0
		}
		return reflect.DeepEqual(a, b)
	}}
	Ne = Operation{"!=", func(a, b any) bool { return !Eq.Fn(a, b) }}
	Lt = Operation{"<", ordered(func(c int) bool { return c < 0 })}
	Le = Operation{"<=", ordered(func(c int) bool { return c <= 0 })}
	Gt = Operation{">", ordered(func(c int) bool { return c > 0 })}
	Ge = Operation{">=", ordered(func(c int) bool { return c >= 0 })}
)

func ordered(test func(int) bool) func(a, b any) bool {
	return func(a, b any) bool {
		c, ok := compare(a, b)
		return ok && test(c)
	}
}

func compare(a, b any) (int, bool) {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return cmp.Compare(x, y), true
		}
		return 0, false
	}
	x, ok := a.(string)
	if !ok {
		return 0, false
	}
	y, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(x, y), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
