// Package platform holds the wire payloads exchanged between an agent and
// its platforms.
package platform

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// Action tells the receiver of a payload what to do with its message.
type Action string

// Inbound actions, sent by users.
const (
	UserMessage Action = "user_message"
	UserVoice   Action = "user_voice"
	UserFile    Action = "user_file"
	Reset       Action = "reset"
)

// Outbound actions, one per reply type.
const (
	AgentReplyStr       Action = "agent_reply_str"
	AgentReplyMarkdown  Action = "agent_reply_markdown"
	AgentReplyHTML      Action = "agent_reply_html"
	AgentReplyFile      Action = "agent_reply_file"
	AgentReplyImage     Action = "agent_reply_image"
	AgentReplyDataFrame Action = "agent_reply_dataframe"
	AgentReplyPlotly    Action = "agent_reply_plotly"
	AgentReplyOptions   Action = "agent_reply_options"
	AgentReplyLocation  Action = "agent_reply_location"
	AgentReplyRAG       Action = "agent_reply_rag"
)

var actions = map[Action]bool{
	UserMessage: true, UserVoice: true, UserFile: true, Reset: true,
	AgentReplyStr: true, AgentReplyMarkdown: true, AgentReplyHTML: true,
	AgentReplyFile: true, AgentReplyImage: true, AgentReplyDataFrame: true,
	AgentReplyPlotly: true, AgentReplyOptions: true, AgentReplyLocation: true,
	AgentReplyRAG: true,
}

var replyActions = map[types.MessageType]Action{
	types.MessageStr:       AgentReplyStr,
	types.MessageMarkdown:  AgentReplyMarkdown,
	types.MessageHTML:      AgentReplyHTML,
	types.MessageFile:      AgentReplyFile,
	types.MessageImage:     AgentReplyImage,
	types.MessageDataFrame: AgentReplyDataFrame,
	types.MessagePlotly:    AgentReplyPlotly,
	types.MessageOptions:   AgentReplyOptions,
	types.MessageLocation:  AgentReplyLocation,
	types.MessageRAGAnswer: AgentReplyRAG,
}

// ErrUnknownAction is returned when decoding a payload with an action outside
// the known set.
var ErrUnknownAction = errors.New("platform: unknown payload action")

// ErrUnsupportedMessage is returned for message types that have no reply
// action, such as audio.
var ErrUnsupportedMessage = errors.New("platform: message type has no reply action")

// Payload is the {action, message} frame.
type Payload struct {
	Action  Action `json:"action"`
	Message any    `json:"message"`
}

// Decode parses a JSON payload.
func Decode(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("platform: invalid payload: %w", err)
	}
	if !actions[p.Action] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, p.Action)
	}
	return &p, nil
}

// Encode returns the JSON form of p.
func (p Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// Text returns the message as a string, or "" when it is not one.
func (p Payload) Text() string {
	s, _ := p.Message.(string)
	return s
}

// File decodes a {name, type, base64} message.
func (p Payload) File() (*types.File, error) {
	var f types.File
	if err := p.Into(&f); err != nil {
		return nil, err
	}
	return types.NewFileFromBase64(f.Name, f.Type, f.Base64)
}

// Into re-decodes the generic message into v.
func (p Payload) Into(v any) error {
	data, err := json.Marshal(p.Message)
	if err != nil {
		return fmt.Errorf("platform: invalid %s message: %w", p.Action, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("platform: invalid %s message: %w", p.Action, err)
	}
	return nil
}

// ReplyAction returns the outbound action for a message type.
func ReplyAction(t types.MessageType) (Action, error) {
	a, ok := replyActions[t]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMessage, t)
	}
	return a, nil
}

// FromMessage builds the outbound payload of an agent message.
func FromMessage(msg types.Message) (Payload, error) {
	a, err := ReplyAction(msg.Type)
	if err != nil {
		return Payload{}, err
	}
	return Payload{Action: a, Message: msg.Content}, nil
}

// ToMessage is the inverse of FromMessage: it rebuilds the agent message of
// an outbound payload, keeping the message content as is.
func ToMessage(p Payload) (types.Message, error) {
	for t, a := range replyActions {
		if a == p.Action {
			return types.NewMessage(t, p.Message, false), nil
		}
	}
	return types.Message{}, fmt.Errorf("%w: %q is not a reply action", ErrUnknownAction, p.Action)
}
