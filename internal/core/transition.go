package core

import "fmt"

// Transition moves a session from Source to Dest when Event holds. States
// are referenced by name.
type Transition struct {
	Name   string
	Source string
	Dest   string
	Event  Event
}

// Log describes the transition, e.g.
// "intent_matched (hello_intent): [s0] --> [s1]".
func (t *Transition) Log() string {
	if info := t.Event.Info(); info != "" {
		return fmt.Sprintf("%s (%s): [%s] --> [%s]", t.Event, info, t.Source, t.Dest)
	}
	return fmt.Sprintf("%s: [%s] --> [%s]", t.Event, t.Source, t.Dest)
}

func (t *Transition) isAuto() bool { return t.Event.Kind == EventAuto }

func (t *Transition) matchesIntent(name string) bool {
	return t.Event.Kind == EventIntentMatched && t.Event.Intent != nil && t.Event.Intent.Name == name
}
