package types

// Base entity names. Base entities have no entries: their values are found
// by pattern matching in the user message.
const (
	baseEntityPrefix = "base."

	BaseEntityNumber   = baseEntityPrefix + "number"    // Any number (digits or words)
	BaseEntityDateTime = baseEntityPrefix + "date-time" // Any date, time or datetime expression
	BaseEntityAny      = baseEntityPrefix + "any"       // Any text (never matched by the simple NER)
)

// OrderedBaseEntities is the order in which base entities are searched in a
// message. Date-times go before numbers since a date contains digits.
var OrderedBaseEntities = []string{
	BaseEntityDateTime,
	BaseEntityNumber,
	BaseEntityAny,
}

// EntityEntry is a canonical value of a custom entity together with its synonyms.
type EntityEntry struct {
	Value    string   `json:"value"`              // Canonical value
	Synonyms []string `json:"synonyms,omitempty"` // Alternative spellings

	// Filled at training time with the text processor output.
	ProcessedValue    string   `json:"-"`
	ProcessedSynonyms []string `json:"-"`
	Processed         bool     `json:"-"`
}

// Entity is a vocabulary used to extract values from user messages.
type Entity struct {
	Name        string         `json:"name"`
	Base        bool           `json:"base_entity"`
	Entries     []*EntityEntry `json:"entries,omitempty"`
	Description string         `json:"description,omitempty"`
}

// NewEntity creates a custom entity. Entries are given as an ordered list of
// value → synonyms pairs so the declaration order is kept.
func NewEntity(name, description string, entries ...*EntityEntry) *Entity {
	return &Entity{Name: name, Entries: entries, Description: description}
}

// Entry is a shorthand for building an EntityEntry.
func Entry(value string, synonyms ...string) *EntityEntry {
	return &EntityEntry{Value: value, Synonyms: synonyms}
}

// HasEntry reports whether the entity already contains the canonical value.
func (e *Entity) HasEntry(value string) bool {
	for _, entry := range e.Entries {
		if entry.Value == value {
			return true
		}
	}
	return false
}

// ProcessEntries stores the processed value and synonyms of every entry.
// Base entities have nothing to process.
func (e *Entity) ProcessEntries(process func(string) string) {
	if e.Base {
		return
	}
	for _, entry := range e.Entries {
		entry.ProcessedValue = process(entry.Value)
		entry.ProcessedSynonyms = make([]string, 0, len(entry.Synonyms))
		for _, synonym := range entry.Synonyms {
			entry.ProcessedSynonyms = append(entry.ProcessedSynonyms, process(synonym))
		}
		entry.Processed = true
	}
}

// EntityJSON is the serialized form of an entity handed to LLMs.
type EntityJSON struct {
	BaseEntity  bool             `json:"base_entity"`
	Description string           `json:"description,omitempty"`
	Entries     []EntityEntryJSON `json:"entries"`
}

// EntityEntryJSON is the serialized form of an entity entry.
type EntityEntryJSON struct {
	Value    string   `json:"value"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// ToJSON returns the LLM-facing description of the entity.
func (e *Entity) ToJSON(withDescription, withSynonyms bool) EntityJSON {
	out := EntityJSON{BaseEntity: e.Base, Entries: []EntityEntryJSON{}}
	if withDescription {
		out.Description = e.Description
	}
	for _, entry := range e.Entries {
		j := EntityEntryJSON{Value: entry.Value}
		if withSynonyms {
			j.Synonyms = entry.Synonyms
		}
		out.Entries = append(out.Entries, j)
	}
	return out
}

// Base entity singletons shared by every agent.
var (
	NumberEntity = &Entity{
		Name:        BaseEntityNumber,
		Base:        true,
		Description: "An entity that matches any number",
	}
	DateTimeEntity = &Entity{
		Name:        BaseEntityDateTime,
		Base:        true,
		Description: "An entity that matches any date, time or datetime value",
	}
	AnyEntity = &Entity{
		Name:        BaseEntityAny,
		Base:        true,
		Description: "An entity that matches any text",
	}
)

// IsBaseEntityName reports whether name is one of the base entity names.
func IsBaseEntityName(name string) bool {
	for _, n := range OrderedBaseEntities {
		if n == name {
			return true
		}
	}
	return false
}
