package core

import "errors"

// Declaration errors.
var (
	ErrDuplicatedState                    = errors.New("core: duplicated state")
	ErrDuplicatedInitialState             = errors.New("core: duplicated initial state")
	ErrDuplicatedIntent                   = errors.New("core: duplicated intent")
	ErrDuplicatedEntity                   = errors.New("core: duplicated entity")
	ErrDuplicatedParameter                = errors.New("core: duplicated intent parameter")
	ErrStateNotFound                      = errors.New("core: state not found in agent")
	ErrIntentNotFound                     = errors.New("core: intent not found in agent")
	ErrDuplicatedIntentMatchingTransition = errors.New("core: duplicated intent matching transition")
	ErrDuplicatedAutoTransition           = errors.New("core: duplicated auto transition")
	ErrConflictingAutoTransition          = errors.New("core: auto transition conflicts with other transitions")
	ErrProcessorTargetUndefined           = errors.New("core: processor applies to neither user nor agent messages")
)

// Training and runtime errors.
var (
	ErrClassifierWithoutIntents = errors.New("core: intent classifier configured on a state without intents")
	ErrInitialStateNotFound     = errors.New("core: initial state not found")
	ErrAgentNotTrained          = errors.New("core: agent not trained")
	ErrSessionNotFound          = errors.New("core: session not found")
	ErrPlatformMismatch         = errors.New("core: session belongs to another platform")
	ErrPlatformNotUsed          = errors.New("core: platform not used by the agent")
	ErrAgentRunning             = errors.New("core: agent already running")
)
