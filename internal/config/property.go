package config

import "fmt"

// Kind is the value type of a property.
type Kind int

// Property value kinds
const (
	String Kind = iota
	Bool
	Int
	Float
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Property is a typed configuration key living in a section.
type Property struct {
	Section string
	Name    string
	Kind    Kind
	Default any
}

// Check reports whether value can be stored for the property. Ints are
// accepted for float properties.
func (p Property) Check(value any) error {
	if value == nil {
		return nil
	}
	ok := false
	switch p.Kind {
	case String:
		_, ok = value.(string)
	case Bool:
		_, ok = value.(bool)
	case Int:
		switch value.(type) {
		case int, int32, int64:
			ok = true
		}
	case Float:
		switch value.(type) {
		case float64, float32, int, int32, int64:
			ok = true
		}
	}
	if !ok {
		return fmt.Errorf("%w: %s expects %s, got %T", ErrPropertyType, p.Name, p.Kind, value)
	}
	return nil
}

// Key returns the dotted property name, e.g. "nlp.language".
func (p Property) Key() string {
	return p.Name
}

func (p Property) String() string {
	return p.Key()
}

// Sections
const (
	SectionNLP       = "nlp"
	SectionDB        = "db"
	SectionWebSocket = "websocket"
	SectionTelegram  = "telegram"
)

// NLP properties
var (
	NLPLanguage        = Property{SectionNLP, "nlp.language", String, "en"}
	NLPRegion          = Property{SectionNLP, "nlp.region", String, "US"}
	NLPTimezone        = Property{SectionNLP, "nlp.timezone", String, "Europe/Madrid"}
	NLPPreProcessing   = Property{SectionNLP, "nlp.pre_processing", Bool, true}
	NLPIntentThreshold = Property{SectionNLP, "nlp.intent_threshold", Float, 0.4}

	// Read by the LLM and speech-to-text collaborators.
	OpenAIAPIKey     = Property{SectionNLP, "nlp.openai.api_key", String, nil}
	OpenAIModel      = Property{SectionNLP, "nlp.openai.model", String, "gpt-4o-mini"}
	AnthropicAPIKey  = Property{SectionNLP, "nlp.anthropic.api_key", String, nil}
	AnthropicModel   = Property{SectionNLP, "nlp.anthropic.model", String, "claude-haiku-4-5-20251001"}
	OllamaURL        = Property{SectionNLP, "nlp.ollama.url", String, "http://localhost:11434"}
	OllamaModel      = Property{SectionNLP, "nlp.ollama.model", String, "qwen2.5:7b"}
	Speech2TextModel = Property{SectionNLP, "nlp.speech2text.model", String, "whisper-1"}
	EmbeddingModel   = Property{SectionNLP, "nlp.embedding.model", String, "text-embedding-3-small"}
)

// Retrieval-augmented generation properties
var (
	RAGDatabaseURL  = Property{SectionNLP, "nlp.rag.database_url", String, nil}
	RAGTable        = Property{SectionNLP, "nlp.rag.table", String, "rag_chunks"}
	RAGDimensions   = Property{SectionNLP, "nlp.rag.dimensions", Int, 1536}
	RAGK            = Property{SectionNLP, "nlp.rag.k", Int, 4}
	RAGNumContext   = Property{SectionNLP, "nlp.rag.num_context", Int, 0}
	RAGChunkSize    = Property{SectionNLP, "nlp.rag.chunk_size", Int, 1000}
	RAGChunkOverlap = Property{SectionNLP, "nlp.rag.chunk_overlap", Int, 100}
)

// Monitoring database properties
var (
	DBMonitoring         = Property{SectionDB, "db.monitoring", Bool, false}
	DBMonitoringDialect  = Property{SectionDB, "db.monitoring.dialect", String, nil}
	DBMonitoringHost     = Property{SectionDB, "db.monitoring.host", String, nil}
	DBMonitoringPort     = Property{SectionDB, "db.monitoring.port", Int, nil}
	DBMonitoringDatabase = Property{SectionDB, "db.monitoring.database", String, nil}
	DBMonitoringUsername = Property{SectionDB, "db.monitoring.username", String, nil}
	DBMonitoringPassword = Property{SectionDB, "db.monitoring.password", String, nil}
)

// Platform properties
var (
	WebSocketHost    = Property{SectionWebSocket, "websocket.host", String, "localhost"}
	WebSocketPort    = Property{SectionWebSocket, "websocket.port", Int, 8765}
	WebSocketMaxSize = Property{SectionWebSocket, "websocket.max_size", Int, nil}

	TelegramToken = Property{SectionTelegram, "telegram.token", String, nil}
)

// Known lists every property the runtime reads. Environment overrides are
// only looked up for these.
var Known = []Property{
	NLPLanguage, NLPRegion, NLPTimezone, NLPPreProcessing, NLPIntentThreshold,
	OpenAIAPIKey, OpenAIModel, AnthropicAPIKey, AnthropicModel, OllamaURL, OllamaModel,
	Speech2TextModel, EmbeddingModel,
	RAGDatabaseURL, RAGTable, RAGDimensions, RAGK, RAGNumContext, RAGChunkSize, RAGChunkOverlap,
	DBMonitoring, DBMonitoringDialect, DBMonitoringHost, DBMonitoringPort,
	DBMonitoringDatabase, DBMonitoringUsername, DBMonitoringPassword,
	WebSocketHost, WebSocketPort, WebSocketMaxSize,
	TelegramToken,
}
