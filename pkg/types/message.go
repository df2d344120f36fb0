// Package types holds the messages, intents and entities shared by agents,
// their classifiers and their platforms.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType tags the content of a chat message.
type MessageType string

// Message type constants
const (
	MessageStr       MessageType = "str"
	MessageMarkdown  MessageType = "markdown"
	MessageHTML      MessageType = "html"
	MessageFile      MessageType = "file"
	MessageImage     MessageType = "image"
	MessageDataFrame MessageType = "dataframe"
	MessagePlotly    MessageType = "plotly"
	MessageLocation  MessageType = "location"
	MessageOptions   MessageType = "options"
	MessageAudio     MessageType = "audio"
	MessageRAGAnswer MessageType = "rag_answer"
)

// MessageTypes lists every known message type.
var MessageTypes = []MessageType{
	MessageStr, MessageMarkdown, MessageHTML, MessageFile, MessageImage,
	MessageDataFrame, MessagePlotly, MessageLocation, MessageOptions,
	MessageAudio, MessageRAGAnswer,
}

// ParseMessageType maps a stored type tag back to a MessageType.
func ParseMessageType(s string) (MessageType, error) {
	for _, t := range MessageTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown message type: %q", s)
}

// Message is one entry of a conversation.
type Message struct {
	Type      MessageType `json:"type"`
	Content   any         `json:"content"`
	IsUser    bool        `json:"is_user"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage builds a message stamped with the current time.
func NewMessage(t MessageType, content any, isUser bool) Message {
	return Message{Type: t, Content: content, IsUser: isUser, Timestamp: time.Now()}
}

// Text returns the content as a string: strings are returned as is, anything
// else is JSON encoded. This is the form stored by the monitoring sink.
func (m Message) Text() string {
	switch c := m.Content.(type) {
	case string:
		return c
	case fmt.Stringer:
		return c.String()
	case nil:
		return ""
	}
	b, err := json.Marshal(m.Content)
	if err != nil {
		return fmt.Sprint(m.Content)
	}
	return string(b)
}

// Location is the content of a location message.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DataFrame is a minimal tabular payload for dataframe messages.
type DataFrame struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// RAGDocument is a retrieved chunk used to answer a question.
type RAGDocument struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RAGMessage is the answer produced by a retrieval-augmented generation run.
type RAGMessage struct {
	LLMName  string        `json:"llm_name"`
	Question string        `json:"question"`
	Answer   string        `json:"answer"`
	Docs     []RAGDocument `json:"docs"`
}
