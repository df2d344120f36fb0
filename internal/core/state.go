package core

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/classifier"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// Body is the code run when a session enters a state, or the fallback code
// run when a state cannot handle a message. Returned errors and panics are
// logged and never stop the session.
type Body func(ctx context.Context, s *Session) error

// DefaultBody does nothing.
func DefaultBody(context.Context, *Session) error { return nil }

// DefaultFallbackBody tells the user the message was not understood.
func DefaultFallbackBody(ctx context.Context, s *Session) error {
	return s.Reply(ctx, "Sorry, I didn't get it")
}

// State is a node of the agent graph.
type State struct {
	agent   *Agent
	name    string
	initial bool

	body         Body
	fallbackBody Body

	transitions []*Transition
	intents     []*types.Intent
	// nil uses the agent default.
	classifierConfig classifier.Config
	counter          int
}

// StateOption configures a state at creation.
type StateOption func(*State)

// Initial marks the state as the one new sessions start in.
func Initial() StateOption {
	return func(s *State) { s.initial = true }
}

// WithClassifier sets the intent classifier of the state.
func WithClassifier(cfg classifier.Config) StateOption {
	return func(s *State) { s.classifierConfig = cfg }
}

func (s *State) Name() string    { return s.name }
func (s *State) IsInitial() bool { return s.initial }

// Transitions returns the transitions in declaration order.
func (s *State) Transitions() []*Transition {
	return append([]*Transition(nil), s.transitions...)
}

// Intents returns the intents that trigger a transition of the state.
func (s *State) Intents() []*types.Intent {
	return append([]*types.Intent(nil), s.intents...)
}

// SetBody sets the state body.
func (s *State) SetBody(body Body) {
	if body == nil {
		body = DefaultBody
	}
	s.body = body
}

// SetFallbackBody sets the body run when a message matches no transition.
func (s *State) SetFallbackBody(body Body) {
	if body == nil {
		body = DefaultFallbackBody
	}
	s.fallbackBody = body
}

func (s *State) nextName() string {
	s.counter++
	return fmt.Sprintf("t_%d", s.counter)
}

// WhenEventGoTo adds a transition to dest triggered by event.
func (s *State) WhenEventGoTo(event Event, dest *State) error {
	if dest == nil || s.agent.states[dest.name] != dest {
		return fmt.Errorf("%w: destination of %s", ErrStateNotFound, s.name)
	}
	for _, t := range s.transitions {
		if t.isAuto() {
			if event.Kind == EventAuto {
				return fmt.Errorf("%w: %s", ErrDuplicatedAutoTransition, s.name)
			}
			return fmt.Errorf("%w: %s", ErrConflictingAutoTransition, s.name)
		}
	}
	if event.Kind == EventAuto && len(s.transitions) > 0 {
		return fmt.Errorf("%w: %s", ErrConflictingAutoTransition, s.name)
	}
	if event.Kind == EventIntentMatched {
		if event.Intent == nil || s.agent.intent(event.Intent.Name) != event.Intent {
			return fmt.Errorf("%w: transition of %s", ErrIntentNotFound, s.name)
		}
		for _, t := range s.transitions {
			if t.matchesIntent(event.Intent.Name) {
				return fmt.Errorf("%w: %s on %s", ErrDuplicatedIntentMatchingTransition, s.name, event.Intent.Name)
			}
		}
		s.intents = append(s.intents, event.Intent)
	}
	s.transitions = append(s.transitions, &Transition{
		Name:   s.nextName(),
		Source: s.name,
		Dest:   dest.name,
		Event:  event,
	})
	return nil
}

// GoTo adds an auto transition. It must be the only transition of the
// state.
func (s *State) GoTo(dest *State) error {
	return s.WhenEventGoTo(Auto(), dest)
}

// WhenIntentMatchedGoTo moves to dest when a user message is classified as
// intent.
func (s *State) WhenIntentMatchedGoTo(intent *types.Intent, dest *State) error {
	return s.WhenEventGoTo(IntentMatched(intent), dest)
}

// WhenVariableMatchesOperationGoTo moves to dest when the session variable
// name compared to target with op is true.
func (s *State) WhenVariableMatchesOperationGoTo(name string, op Operation, target any, dest *State) error {
	return s.WhenEventGoTo(VariableMatchesOperation(name, op, target), dest)
}

// WhenFileReceivedGoTo moves to dest when the user sends a file of one of
// fileTypes, or any file when none is given.
func (s *State) WhenFileReceivedGoTo(dest *State, fileTypes ...string) error {
	return s.WhenEventGoTo(FileReceived(fileTypes...), dest)
}

// SetGlobal makes the state reachable from every other state through
// intent. When the chain of states that follows it ends, the session goes
// back to the state it came from.
func (s *State) SetGlobal(intent *types.Intent) error {
	if intent == nil || s.agent.intent(intent.Name) != intent {
		return fmt.Errorf("%w: global state %s", ErrIntentNotFound, s.name)
	}
	s.agent.globals = append(s.agent.globals, globalState{state: s, intent: intent})
	return nil
}

// run executes the body, then takes the first transition if it is auto, or
// otherwise the first non intent transition whose event holds.
func (s *State) run(ctx context.Context, sess *Session) {
	sess.logger().Info("running state body", slog.String("state", s.name))
	callBody(ctx, sess, s.name, "body", s.body)
	if len(s.transitions) == 0 {
		return
	}
	if first := s.transitions[0]; first.isAuto() {
		sess.move(ctx, first)
		return
	}
	for _, t := range s.transitions {
		if t.Event.Kind == EventIntentMatched {
			continue
		}
		if t.Event.holds(sess) {
			sess.move(ctx, t)
			return
		}
	}
}

// receiveIntent fires the first transition that holds for the predicted
// intent. When none does, a fallback prediction runs the fallback body and
// any other intent leaves the session waiting in the state.
func (s *State) receiveIntent(ctx context.Context, sess *Session) {
	defer sess.clearFlags()
	for _, t := range s.transitions {
		if t.Event.holds(sess) {
			sess.move(ctx, t)
			return
		}
	}
	if p := sess.prediction; p != nil && p.Intent.IsFallback() {
		sess.logger().Info("running fallback body", slog.String("state", s.name))
		callBody(ctx, sess, s.name, "fallback body", s.fallbackBody)
	}
}

// receiveFile fires the first transition that holds for the received file,
// or runs the fallback body.
func (s *State) receiveFile(ctx context.Context, sess *Session) {
	defer sess.clearFlags()
	for _, t := range s.transitions {
		if t.Event.holds(sess) {
			sess.move(ctx, t)
			return
		}
	}
	sess.logger().Info("running fallback body", slog.String("state", s.name))
	callBody(ctx, sess, s.name, "fallback body", s.fallbackBody)
}

func callBody(ctx context.Context, sess *Session, state, kind string, body Body) {
	defer func() {
		if r := recover(); r != nil {
			sess.logger().Error("state "+kind+" panicked",
				slog.String("state", state), slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
	}()
	if err := body(ctx, sess); err != nil {
		sess.logger().Error("state "+kind+" failed", slog.String("state", state), slog.Any("error", err))
	}
}
