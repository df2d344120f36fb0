// Package core is the agent runtime: a graph of states joined by event
// triggered transitions, traversed by one session per user as messages
// arrive from the agent platforms.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/config"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/llm"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/logging"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/monitoring"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/classifier"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/platform"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/rag"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// Platform is a channel between users and the agent.
type Platform interface {
	Name() string
	Initialize(a *Agent) error
	// Start serves users until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, sessionID string, p platform.Payload) error
	// Reply delivers an agent message to the user of s. It fails with
	// ErrPlatformMismatch when s belongs to another platform.
	Reply(ctx context.Context, s *Session, msg types.Message) error
}

// CheckPlatform returns ErrPlatformMismatch unless s talks through p.
func CheckPlatform(p Platform, s *Session) error {
	if s.platform != p {
		return fmt.Errorf("%w: session %s", ErrPlatformMismatch, s.id)
	}
	return nil
}

type globalState struct {
	state  *State
	intent *types.Intent
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithProperties replaces the agent properties.
func WithProperties(props *config.Properties) Option {
	return func(a *Agent) { a.props = props }
}

// WithMonitoring sets the monitoring sink instead of connecting to the
// database described by the db.monitoring properties. The caller keeps
// ownership of sink.
func WithMonitoring(sink monitoring.Sink) Option {
	return func(a *Agent) { a.monitoring = sink }
}

// WithNLPOptions passes options to the NLP engine.
func WithNLPOptions(opts ...nlp.Option) Option {
	return func(a *Agent) { a.nlpOptions = append(a.nlpOptions, opts...) }
}

// RunOptions controls Run.
type RunOptions struct {
	// Train the agent before starting the platforms.
	Train bool
	// Block until ctx is cancelled, then stop the agent.
	Block bool
}

// Agent is a conversational agent.
type Agent struct {
	name       string
	logger     *slog.Logger
	props      *config.Properties
	nlp        *nlp.Engine
	nlpOptions []nlp.Option

	// Declared before training, read only afterwards.
	states           map[string]*State
	order            []*State
	initial          *State
	intents          []*types.Intent
	entities         []*types.Entity
	defaultConfig    classifier.Config
	globalFallback   Body
	globals          []globalState
	linkedGlobals    int
	globalComponents map[string]bool
	processors       []Processor
	platforms        []Platform

	mu       sync.RWMutex
	sessions map[string]*Session
	trained  bool

	runMu          sync.Mutex
	monitoring     monitoring.Sink
	ownsMonitoring bool
	group          *errgroup.Group
	cancel         context.CancelFunc
}

// New creates an agent.
func New(name string, opts ...Option) *Agent {
	a := &Agent{
		name:          name,
		logger:        slog.Default(),
		props:         config.New(),
		states:        make(map[string]*State),
		defaultConfig: classifier.DefaultSimpleConfig(),
		sessions:      make(map[string]*Session),
		monitoring:    monitoring.Nop{},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(slog.String("agent", name))
	a.nlp = nlp.NewEngine(a.props, append([]nlp.Option{nlp.WithLogger(a.logger)}, a.nlpOptions...)...)
	return a
}

func (a *Agent) Name() string              { return a.name }
func (a *Agent) Logger() *slog.Logger      { return a.logger }
func (a *Agent) NLP() *nlp.Engine          { return a.nlp }
func (a *Agent) Platforms() []Platform     { return append([]Platform(nil), a.platforms...) }
func (a *Agent) Intents() []*types.Intent  { return append([]*types.Intent(nil), a.intents...) }
func (a *Agent) Entities() []*types.Entity { return append([]*types.Entity(nil), a.entities...) }

// States returns the states in declaration order.
func (a *Agent) States() []*State { return append([]*State(nil), a.order...) }

// State returns the state called name.
func (a *Agent) State(name string) (*State, bool) {
	s, ok := a.states[name]
	return s, ok
}

// Monitoring returns the monitoring sink.
func (a *Agent) Monitoring() monitoring.Sink {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.monitoring
}

// Trained reports whether Train succeeded.
func (a *Agent) Trained() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.trained
}

// NewState declares a state.
func (a *Agent) NewState(name string, opts ...StateOption) (*State, error) {
	if _, ok := a.states[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatedState, name)
	}
	s := &State{agent: a, name: name, body: DefaultBody, fallbackBody: DefaultFallbackBody}
	if a.globalFallback != nil {
		s.fallbackBody = a.globalFallback
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.initial {
		if a.initial != nil {
			return nil, fmt.Errorf("%w: %s and %s", ErrDuplicatedInitialState, a.initial.name, name)
		}
		a.initial = s
	}
	a.states[name] = s
	a.order = append(a.order, s)
	return s, nil
}

func (a *Agent) intent(name string) *types.Intent {
	for _, i := range a.intents {
		if i.Name == name {
			return i
		}
	}
	return nil
}

func (a *Agent) entity(name string) *types.Entity {
	for _, e := range a.entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// NewIntent declares an intent.
func (a *Agent) NewIntent(name string, sentences []string, params ...*types.IntentParameter) (*types.Intent, error) {
	intent := &types.Intent{Name: name, TrainingSentences: sentences, Parameters: params}
	if err := a.AddIntent(intent); err != nil {
		return nil, err
	}
	return intent, nil
}

// AddIntent declares an intent built by the caller. The custom entities of
// its parameters are declared too.
func (a *Agent) AddIntent(intent *types.Intent) error {
	if a.intent(intent.Name) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicatedIntent, intent.Name)
	}
	seen := make(map[string]bool, len(intent.Parameters))
	var add []*types.Entity
	for _, p := range intent.Parameters {
		if seen[p.Name] {
			return fmt.Errorf("%w: %s in %s", ErrDuplicatedParameter, p.Name, intent.Name)
		}
		seen[p.Name] = true
		if p.Entity == nil || p.Entity.Base {
			continue
		}
		switch existing := a.entity(p.Entity.Name); {
		case existing == nil:
			if err := checkEntries(p.Entity); err != nil {
				return err
			}
			add = append(add, p.Entity)
		case existing != p.Entity:
			return fmt.Errorf("%w: %s", ErrDuplicatedEntity, p.Entity.Name)
		}
	}
	for _, e := range add {
		if a.entity(e.Name) == nil {
			a.entities = append(a.entities, e)
		}
	}
	a.intents = append(a.intents, intent)
	return nil
}

// NewEntity declares a custom entity.
func (a *Agent) NewEntity(name, description string, entries ...*types.EntityEntry) (*types.Entity, error) {
	e := types.NewEntity(name, description, entries...)
	if err := a.AddEntity(e); err != nil {
		return nil, err
	}
	return e, nil
}

// AddEntity declares an entity built by the caller.
func (a *Agent) AddEntity(e *types.Entity) error {
	if a.entity(e.Name) != nil || types.IsBaseEntityName(e.Name) {
		return fmt.Errorf("%w: %s", ErrDuplicatedEntity, e.Name)
	}
	if err := checkEntries(e); err != nil {
		return err
	}
	a.entities = append(a.entities, e)
	return nil
}

func checkEntries(e *types.Entity) error {
	values := make(map[string]bool, len(e.Entries))
	for _, entry := range e.Entries {
		if values[entry.Value] {
			return fmt.Errorf("%w: %s has entry %q twice", ErrDuplicatedEntity, e.Name, entry.Value)
		}
		values[entry.Value] = true
	}
	return nil
}

// SetDefaultClassifierConfig sets the classifier of the states declared
// without one.
func (a *Agent) SetDefaultClassifierConfig(cfg classifier.Config) {
	a.defaultConfig = cfg
}

// SetGlobalFallbackBody sets the fallback body of every state, including
// the ones declared later.
func (a *Agent) SetGlobalFallbackBody(body Body) {
	a.globalFallback = body
	for _, s := range a.order {
		s.SetFallbackBody(body)
	}
}

// UsePlatform adds a platform to the agent.
func (a *Agent) UsePlatform(p Platform) {
	a.platforms = append(a.platforms, p)
}

func (a *Agent) uses(p Platform) bool {
	for _, q := range a.platforms {
		if q == p {
			return true
		}
	}
	return false
}

// AddProcessor appends a message processor. Processors run in the order
// they are added.
func (a *Agent) AddProcessor(p Processor) error {
	if p.Direction()&(UserMessages|AgentMessages) == 0 {
		return fmt.Errorf("%w: %s", ErrProcessorTargetUndefined, p.Name())
	}
	a.processors = append(a.processors, p)
	return nil
}

// LoadProperties reads an INI or YAML properties file.
func (a *Agent) LoadProperties(path string) error {
	return a.props.LoadFile(path)
}

// SetProperty stores a property value. It fails with config.ErrPropertyType
// when value does not match the property kind.
func (a *Agent) SetProperty(prop config.Property, value any) error { return a.props.Set(prop, value) }

func (a *Agent) Property(prop config.Property) any { return a.props.Get(prop) }
func (a *Agent) Properties() *config.Properties    { return a.props }

// RegisterLLM makes model available to classifiers and state bodies.
func (a *Agent) RegisterLLM(model llm.LLM) { a.nlp.RegisterLLM(model) }

func (a *Agent) SetSpeechToText(s llm.SpeechToText) { a.nlp.SetSpeechToText(s) }

func (a *Agent) SetRAG(r *rag.RAG) { a.nlp.SetRAG(r) }

// Train checks the agent graph, wires the global states and trains the
// NLP engine.
func (a *Agent) Train(ctx context.Context) error {
	if a.initial == nil {
		return ErrInitialStateNotFound
	}
	a.initGlobalStates()

	specs := make([]nlp.StateSpec, 0, len(a.order))
	for _, s := range a.order {
		if s.classifierConfig != nil && len(s.intents) == 0 {
			return fmt.Errorf("%w: %s", ErrClassifierWithoutIntents, s.name)
		}
		specs = append(specs, nlp.StateSpec{Name: s.name, Intents: s.intents, Config: s.classifierConfig})
	}
	if err := a.nlp.Initialize(specs, a.defaultConfig); err != nil {
		return err
	}
	if err := a.nlp.Train(ctx, specs, a.entities, a.intents); err != nil {
		return err
	}
	a.mu.Lock()
	a.trained = true
	a.mu.Unlock()
	a.logger.Info("agent trained", slog.Int("states", len(a.order)), slog.Int("intents", len(a.intents)))
	return nil
}

// initGlobalStates links every state outside the global components to each
// global state, and the last state of each component back to where the
// session came from. Global states already linked by an earlier training are
// skipped, so training again leaves the transitions as they are.
func (a *Agent) initGlobalStates() {
	if a.linkedGlobals == len(a.globals) {
		return
	}
	pending := a.globals[a.linkedGlobals:]
	components := make(map[string][]*State, len(pending))
	inComponent := a.globalComponents
	if inComponent == nil {
		inComponent = make(map[string]bool)
	}
	for _, g := range pending {
		chain := a.component(g.state)
		components[g.state.name] = chain
		for _, s := range chain {
			inComponent[s.name] = true
		}
	}
	for _, g := range pending {
		chain := components[g.state.name]
		last := chain[len(chain)-1]
		for _, s := range a.order {
			if inComponent[s.name] || (len(s.transitions) > 0 && s.transitions[0].isAuto()) {
				continue
			}
			if err := s.WhenIntentMatchedGoTo(g.intent, g.state); err != nil {
				a.logger.Warn("global state not reachable", slog.String("global", g.state.name),
					slog.String("state", s.name), slog.Any("error", err))
				continue
			}
			if err := last.WhenVariableMatchesOperationGoTo(PrevStateKey, Eq, s.name, s); err != nil {
				a.logger.Warn("global state cannot return", slog.String("global", g.state.name),
					slog.String("state", s.name), slog.Any("error", err))
			}
		}
	}
	a.globalComponents = inComponent
	a.linkedGlobals = len(a.globals)
}

// component follows the first transition of each state from start until a
// state without transitions or an already visited state.
func (a *Agent) component(start *State) []*State {
	chain := []*State{start}
	seen := map[string]bool{start.name: true}
	for cur := start; len(cur.transitions) > 0; {
		next := a.states[cur.transitions[0].Dest]
		if seen[next.name] {
			break
		}
		seen[next.name] = true
		chain = append(chain, next)
		cur = next
	}
	return chain
}

func (a *Agent) inGlobalComponent(state string) bool {
	return a.globalComponents[state]
}

// Run starts the agent platforms, training the agent first when
// opts.Train is set. With opts.Block it returns after ctx is cancelled and
// the agent is stopped; otherwise call Stop.
func (a *Agent) Run(ctx context.Context, opts RunOptions) error {
	if opts.Train {
		if err := a.Train(ctx); err != nil {
			return err
		}
	}
	if !a.Trained() {
		return ErrAgentNotTrained
	}

	a.runMu.Lock()
	if a.group != nil {
		a.runMu.Unlock()
		return ErrAgentRunning
	}
	if _, nop := a.monitoring.(monitoring.Nop); nop {
		a.monitoring = monitoring.Connect(ctx, a.props, a.logger)
		a.ownsMonitoring = a.monitoring.Enabled()
	}
	for _, p := range a.platforms {
		if err := p.Initialize(a); err != nil {
			a.runMu.Unlock()
			return fmt.Errorf("core: failed to initialize platform %s: %w", p.Name(), err)
		}
	}
	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	for _, p := range a.platforms {
		g.Go(func() error {
			a.logger.Info("starting platform", slog.String("platform", p.Name()))
			if err := p.Start(gctx); err != nil {
				return fmt.Errorf("platform %s: %w", p.Name(), err)
			}
			return nil
		})
	}
	a.group, a.cancel = g, cancel
	a.runMu.Unlock()
	a.logger.Info("agent running", slog.Int("platforms", len(a.platforms)))

	if !opts.Block {
		return nil
	}
	<-gctx.Done()
	stopCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer stop()
	return a.Stop(stopCtx)
}

// Stop stops the platforms, waits for them and closes the monitoring
// database opened by Run. Stopping an agent that is not running does
// nothing.
func (a *Agent) Stop(ctx context.Context) error {
	a.runMu.Lock()
	g, cancel := a.group, a.cancel
	a.group, a.cancel = nil, nil
	a.runMu.Unlock()
	if g == nil {
		return nil
	}

	var errs []error
	for _, p := range a.platforms {
		if err := p.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("platform %s: %w", p.Name(), err))
		}
	}
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		errs = append(errs, err)
	}

	a.runMu.Lock()
	if a.ownsMonitoring {
		if err := a.monitoring.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("monitoring: %w", err))
		}
		a.monitoring, a.ownsMonitoring = monitoring.Nop{}, false
	}
	a.runMu.Unlock()
	a.logger.Info("agent stopped")
	return errors.Join(errs...)
}

// GetOrCreateSession returns the session id, creating it on platform p and
// running the initial state when it does not exist. p may be nil for
// sessions driven directly through the Receive methods.
func (a *Agent) GetOrCreateSession(ctx context.Context, id string, p Platform) (*Session, error) {
	if p != nil && !a.uses(p) {
		return nil, fmt.Errorf("%w: %s", ErrPlatformNotUsed, p.Name())
	}
	a.mu.Lock()
	if !a.trained {
		a.mu.Unlock()
		return nil, ErrAgentNotTrained
	}
	if s, ok := a.sessions[id]; ok {
		a.mu.Unlock()
		return s, nil
	}
	s := newSession(id, a, p)
	// Locked before it is visible so that events wait for the initial state.
	s.mu.Lock()
	a.sessions[id] = s
	a.mu.Unlock()
	defer s.mu.Unlock()

	a.start(ctx, s)
	return s, nil
}

func (a *Agent) start(ctx context.Context, s *Session) {
	record := monitoring.SessionRecord{Agent: a.name, SessionID: s.id}
	if s.platform != nil {
		record.Platform = s.platform.Name()
	}
	if err := a.Monitoring().InsertSession(ctx, record); err != nil {
		s.log.Error("failed to record session", slog.Any("error", err))
	}
	s.log.Info("session started")
	a.initial.run(logging.NewContext(ctx, s.log), s)
}

// Session returns the session id.
func (a *Agent) Session(id string) (*Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// DeleteSession forgets the session id.
func (a *Agent) DeleteSession(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(a.sessions, id)
	return nil
}

// Reset replaces the session id with a new one on the same platform and runs
// the initial state. It waits for the event the session is handling, so it
// must not be called from a state body.
func (a *Agent) Reset(ctx context.Context, id string) (*Session, error) {
	old, err := a.Session(id)
	if err != nil {
		return nil, err
	}
	old.mu.Lock()
	s := newSession(id, a, old.platform)
	s.mu.Lock()
	a.mu.Lock()
	a.sessions[id] = s
	a.mu.Unlock()
	old.mu.Unlock()
	defer s.mu.Unlock()

	s.log.Info("session reset")
	a.start(ctx, s)
	return s, nil
}

// ReceiveMessage handles a text message of the user of session id: user
// processors, history, intent prediction and the transition it triggers.
func (a *Agent) ReceiveMessage(ctx context.Context, id, text string) error {
	s, err := a.Session(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx = logging.NewContext(ctx, s.log)

	msg := a.process(ctx, s, types.NewMessage(types.MessageStr, text, true), UserMessages)
	text = msg.Text()
	s.message = text
	s.saveMessage(msg)

	prediction := a.nlp.PredictIntent(ctx, s.current, text)
	s.prediction = prediction
	s.flags.predictedIntent = true
	s.log.Info("intent predicted", slog.String("state", s.current),
		slog.String("intent", prediction.Intent.Name), slog.Float64("score", prediction.Score))
	a.Monitoring().InsertIntentPrediction(monitoring.PredictionRecord{
		Agent:      a.name,
		SessionID:  s.id,
		Message:    text,
		Classifier: a.nlp.ClassifierName(s.current),
		Intent:     prediction.Intent.Name,
		Score:      prediction.Score,
		Parameters: prediction.MatchedParameters,
	})
	a.states[s.current].receiveIntent(ctx, s)
	return nil
}

// ReceiveFile handles a file sent by the user of session id.
func (a *Agent) ReceiveFile(ctx context.Context, id string, f *types.File) error {
	s, err := a.Session(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx = logging.NewContext(ctx, s.log)

	msg := a.process(ctx, s, types.NewMessage(types.MessageFile, f, true), UserMessages)
	if processed, ok := msg.Content.(*types.File); ok {
		f = processed
	}
	s.message = f.Name
	s.file = f
	s.flags.file = true
	s.saveMessage(msg)
	s.log.Info("file received", slog.String("name", f.Name), slog.String("type", f.Type))
	a.states[s.current].receiveFile(ctx, s)
	return nil
}

// ReceiveVoice transcribes audio with the speech-to-text collaborator and
// handles the transcription as a text message.
func (a *Agent) ReceiveVoice(ctx context.Context, id string, audio []byte) error {
	if _, err := a.Session(id); err != nil {
		return err
	}
	text, err := a.nlp.SpeechToText(ctx, audio)
	if err != nil {
		return fmt.Errorf("core: failed to transcribe voice message: %w", err)
	}
	return a.ReceiveMessage(ctx, id, text)
}
