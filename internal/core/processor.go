package core

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/MakeNowJust/heredoc/v2"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/llm"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// Direction selects the messages a processor applies to.
type Direction uint8

// Directions, combinable with |.
const (
	UserMessages Direction = 1 << iota
	AgentMessages
)

// Processor transforms messages on their way in (user messages, before
// intent prediction) or out (agent replies, before sending).
type Processor interface {
	Name() string
	Direction() Direction
	// Accepts reports whether the processor handles msg's content type.
	Accepts(msg types.Message) bool
	Process(ctx context.Context, s *Session, msg types.Message) (types.Message, error)
}

// Func is a processor built from a function over a content type.
type Func[T any] struct {
	name      string
	direction Direction
	fn        func(ctx context.Context, s *Session, content T) (T, error)
}

// NewProcessor wraps fn as a processor of the messages whose content is a T.
func NewProcessor[T any](name string, direction Direction, fn func(ctx context.Context, s *Session, content T) (T, error)) (*Func[T], error) {
	if direction&(UserMessages|AgentMessages) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProcessorTargetUndefined, name)
	}
	return &Func[T]{name: name, direction: direction, fn: fn}, nil
}

func (p *Func[T]) Name() string         { return p.name }
func (p *Func[T]) Direction() Direction { return p.direction }

func (p *Func[T]) Accepts(msg types.Message) bool {
	_, ok := msg.Content.(T)
	return ok
}

func (p *Func[T]) Process(ctx context.Context, s *Session, msg types.Message) (types.Message, error) {
	content, ok := msg.Content.(T)
	if !ok {
		return msg, nil
	}
	out, err := p.fn(ctx, s, content)
	if err != nil {
		return msg, err
	}
	msg.Content = out
	return msg, nil
}

// process runs the processors of direction in registration order. A failing
// or panicking processor is logged and the message goes on unchanged.
func (a *Agent) process(ctx context.Context, s *Session, msg types.Message, direction Direction) types.Message {
	for _, p := range a.processors {
		if p.Direction()&direction == 0 || !p.Accepts(msg) {
			continue
		}
		if out, ok := runProcessor(ctx, s, p, msg); ok {
			msg = out
		}
	}
	return msg
}

func runProcessor(ctx context.Context, s *Session, p Processor, msg types.Message) (out types.Message, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger().Error("processor panicked", slog.String("processor", p.Name()),
				slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			out, ok = msg, false
		}
	}()
	out, err := p.Process(ctx, s, msg)
	if err != nil {
		s.logger().Error("processor failed", slog.String("processor", p.Name()), slog.Any("error", err))
		return msg, false
	}
	return out, true
}

// UserAdaptationProcessor rewrites the agent text replies with an LLM to fit
// the profile of each user.
type UserAdaptationProcessor struct {
	llmName string
	context string

	mu     sync.RWMutex
	models map[string]map[string]any
}

// NewUserAdaptationProcessor uses the LLM registered as llmName.
// agentContext describes the agent and its task.
func NewUserAdaptationProcessor(llmName, agentContext string) *UserAdaptationProcessor {
	if agentContext == "" {
		agentContext = "You are an agent."
	}
	return &UserAdaptationProcessor{llmName: llmName, context: agentContext, models: make(map[string]map[string]any)}
}

// AddUserModel sets the profile of the user of session.
func (p *UserAdaptationProcessor) AddUserModel(s *Session, model map[string]any) {
	p.mu.Lock()
	p.models[s.ID()] = model
	p.mu.Unlock()
}

func (p *UserAdaptationProcessor) Name() string         { return "UserAdaptationProcessor" }
func (p *UserAdaptationProcessor) Direction() Direction { return AgentMessages }

func (p *UserAdaptationProcessor) Accepts(msg types.Message) bool {
	_, ok := msg.Content.(string)
	return ok && msg.Type == types.MessageStr
}

// Process leaves the message untouched for users without a profile.
func (p *UserAdaptationProcessor) Process(ctx context.Context, s *Session, msg types.Message) (types.Message, error) {
	p.mu.RLock()
	model, ok := p.models[s.ID()]
	p.mu.RUnlock()
	if !ok {
		return msg, nil
	}
	m, found := s.LLM(p.llmName)
	if !found {
		return msg, fmt.Errorf("user adaptation: llm %q not registered", p.llmName)
	}
	system := p.context + "\n" + heredoc.Docf(`
		You are capable of adapting your predefined answers based on a given user profile.
		Your goal is to increase the user experience by adapting the messages based on the different attributes of the
		user profile as best as possible and take all the attributes into account.
		You are free to adapt the messages in any way you like. The user should relate more.
		This is the user's profile:
		%v`, model)
	prompt := fmt.Sprintf("You need to adapt this message: %s\nOnly respond with the adapted message!", msg.Content)
	answer, err := m.Chat(ctx, llm.Request{System: system, Turns: []llm.Turn{{Role: llm.RoleUser, Content: prompt}}})
	if err != nil {
		return msg, fmt.Errorf("user adaptation: %w", err)
	}
	msg.Content = answer
	return msg, nil
}

var (
	_ Processor = (*Func[string])(nil)
	_ Processor = (*UserAdaptationProcessor)(nil)
)
