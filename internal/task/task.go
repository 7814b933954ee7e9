// Package task implements the Task Supervisor (spec.md §4.3): the
// exclusive owner of the mutable Agent, the scheduler of background
// prompt tasks against it, the cancellation/timeout machinery, and the
// event stream surfaced to the UI. It is the component that ties the
// Agent loop (internal/agent), the Approval Broker (internal/approval),
// and the Session Store (internal/session) together into the state
// machine described in §2.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xfe/buddy-sub001/internal/agent"
	"github.com/0xfe/buddy-sub001/internal/approval"
	"github.com/0xfe/buddy-sub001/internal/errs"
	"github.com/0xfe/buddy-sub001/internal/session"
)

// State is the sum type from spec.md §3: Running, WaitingApproval, or
// Cancelling.
type State int

const (
	StateRunning State = iota
	StateWaitingApproval
	StateCancelling
)

// Task is a BackgroundTask (§3). Owned exclusively by the Supervisor;
// callers only ever see a read-only snapshot via List/Get.
type Task struct {
	ID        uint64
	Kind      string
	Details   string
	StartedAt time.Time

	State         State
	WaitCommand   string
	WaitSince     time.Time
	WaitRisk      string
	WaitMutation  bool
	WaitPrivesc   bool
	WaitWhy       string
	CancelSince   time.Time

	TimeoutAt     *time.Time
	FinalResponse string

	cancel context.CancelFunc
}

// Snapshot is the read-only view of a Task returned to callers.
type Snapshot struct {
	ID            uint64
	Kind          string
	Details       string
	StartedAt     time.Time
	State         State
	WaitCommand   string
	TimeoutAt     *time.Time
	FinalResponse string
}

func (t *Task) snapshot() Snapshot {
	return Snapshot{
		ID: t.ID, Kind: t.Kind, Details: t.Details, StartedAt: t.StartedAt,
		State: t.State, WaitCommand: t.WaitCommand, TimeoutAt: t.TimeoutAt,
		FinalResponse: t.FinalResponse,
	}
}

// taskIDContextKey carries a running task's id through ctx so an
// approval-gated Tool's injected approver (constructed before any task
// exists) can report which task its approval request belongs to.
type taskIDContextKey struct{}

// ContextWithTaskID returns a child context carrying id, retrievable
// with TaskIDFromContext.
func ContextWithTaskID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, taskIDContextKey{}, id)
}

// TaskIDFromContext retrieves the task id ContextWithTaskID attached,
// if any.
func TaskIDFromContext(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(taskIDContextKey{}).(uint64)
	return id, ok
}

// historyCap bounds the completion-history ring (§4.3: "moved out of
// in-flight storage into a completion-history ring").
const historyCap = 200

// Command is one external instruction into the Supervisor (§4.3).
type Command struct {
	Kind CommandKind

	Text      string        // PromptTurn
	TaskID    *uint64       // CancelTask, SetTimeout (nil means "the only running task")
	Duration  time.Duration // SetTimeout
	Policy    approval.PolicyState // SetApprovalPolicy
	SessionID string        // SessionResume: session id, or "" for "last"
	Profile   string        // SwitchModel
}

// CommandKind enumerates the external command surface (§4.3).
type CommandKind int

const (
	CmdPromptTurn CommandKind = iota
	CmdCancelTask
	CmdSetTimeout
	CmdSetApprovalPolicy
	CmdSessionNew
	CmdSessionResume
	CmdSwitchModel
	CmdCompact
	CmdQuit
)

// EventKind enumerates the lifecycle events emitted upward (§4.3).
type EventKind int

const (
	EvTaskQueued EventKind = iota
	EvTaskStarted
	EvTaskWaitingApproval
	EvTaskCancelling
	EvTaskCompleted
	EvTaskFailed
	EvSessionCreated
	EvSessionResumed
	EvSessionCompacted
	EvSessionSaved
	EvWarning
	EvError
	EvTokenUsage
	EvReasoningTrace
	EvToolCall
	EvToolResult
)

// Event is one item in the event stream. Fields are populated
// according to Kind; unused fields are left at their zero value.
type Event struct {
	Kind    EventKind
	TaskID  *uint64

	ApprovalID string
	Command    string
	Risk       string
	Mutation   bool
	Privesc    bool
	Why        string

	Response string
	Message  string

	SessionID string

	PromptTokens     uint64
	CompletionTokens uint64
	SessionTotal     uint64

	ReasoningField string
	ReasoningText  string

	ToolName string
	ToolArgs string
	ToolResult string
}

// Envelope wraps an Event with the sequencing metadata §6.2 requires.
type Envelope struct {
	Seq      uint64
	TsUnixMs int64
	Event    Event
}

// Supervisor owns the single mutable Agent, serializes access to it,
// and drives the command/event streams described in §4.3.
type Supervisor struct {
	cmds   chan Command
	events chan Envelope

	seqMu sync.Mutex // guards seq — emit is called from the command loop and from every runPrompt goroutine
	seq   uint64

	agentMu sync.Mutex // exclusive Agent access — invariant 1
	ag      *agent.Agent

	store                  *session.Store
	activeSessionID        string
	activeSessionCreatedAt time.Time

	broker   *approval.Broker
	policyMu sync.Mutex
	policy   approval.PolicyState

	mu              sync.Mutex
	tasks           map[uint64]*Task
	history         []Snapshot
	nextTaskID      uint64
	pendingApproval *approval.Request
	pendingTaskID   uint64

	doneOnce sync.Once
	done     chan struct{}

	sessionTotalTokens uint64
}

// NewSupervisor builds a Supervisor. cmdBuffer is the bounded
// command-channel capacity (§5: "bounded (small buffer ≥4)"); values
// below 4 are raised to 4.
func NewSupervisor(ag *agent.Agent, store *session.Store, broker *approval.Broker, cmdBuffer int) *Supervisor {
	if cmdBuffer < 4 {
		cmdBuffer = 4
	}
	return &Supervisor{
		cmds:   make(chan Command, cmdBuffer),
		events: make(chan Envelope, 4096), // unbounded in spirit (§5); UI drains it
		ag:     ag,
		store:  store,
		broker: broker,
		policy: approval.PolicyState{Kind: approval.PolicyAsk},
		tasks:  make(map[uint64]*Task),
		done:   make(chan struct{}),
	}
}

// Commands returns the send side of the bounded command channel.
func (s *Supervisor) Commands() chan<- Command { return s.cmds }

// Events returns the receive side of the event stream.
func (s *Supervisor) Events() <-chan Envelope { return s.events }

// emit is called concurrently from the command-loop goroutine
// (queuePrompt, sweepTimeouts, cancelTask, setTimeout) and from each
// runPrompt goroutine streaming tool-call events under agentMu, which
// shares no lock with the command loop. seqMu keeps the sequence
// number strictly monotonic (§6.2) across both callers.
func (s *Supervisor) emit(ev Event) {
	s.seqMu.Lock()
	s.seq++
	seq := s.seq
	s.seqMu.Unlock()
	s.events <- Envelope{Seq: seq, TsUnixMs: time.Now().UnixMilli(), Event: ev}
}

func (s *Supervisor) warn(taskID *uint64, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if approval.IsTransientApprovalWarning(msg) {
		return
	}
	s.emit(Event{Kind: EvWarning, TaskID: taskID, Message: msg})
}

// InitializeSession restores or creates the active session, following
// the original's dual resume/new path (SPEC_FULL supplemented feature
// 7): on resume the loaded snapshot is pushed into the Agent and
// immediately re-saved, refreshing updated_at.
func (s *Supervisor) InitializeSession(explicitID string, preferLast bool, seedName string) error {
	var id string
	var snap session.Snapshot
	var err error

	switch {
	case explicitID != "":
		id = explicitID
		snap, err = s.store.Load(id)
	case preferLast:
		id, err = s.store.ResolveLast()
		if err == nil && id != "" {
			snap, err = s.store.Load(id)
		}
	}

	if err != nil {
		return err
	}

	if id == "" {
		newID, cerr := s.store.CreateNewSession(seedName, nil)
		if cerr != nil {
			return cerr
		}
		s.activeSessionID = newID
		s.activeSessionCreatedAt = time.Now().UTC()
		s.emit(Event{Kind: EvSessionCreated, SessionID: newID})
		return nil
	}

	s.ag.Messages = snap.Messages
	if err := s.store.Save(id, snap); err != nil {
		return err
	}
	s.activeSessionID = id
	s.activeSessionCreatedAt = snap.CreatedAt
	s.emit(Event{Kind: EvSessionResumed, SessionID: id})
	return nil
}

// Run drains the command channel until CmdQuit, dispatching each
// command in arrival order. Prompt tasks execute their Agent turn on
// their own goroutine (so the command loop stays responsive to
// Cancel/SetTimeout/Policy commands) but are serialized against each
// other and against every other Agent access by agentMu — satisfying
// invariant 1 even though the Supervisor itself is not single-threaded.
func (s *Supervisor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	sweep := time.NewTicker(200 * time.Millisecond)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			s.sweepTimeouts()
		case cmd, ok := <-s.cmds:
			if !ok {
				return
			}
			if cmd.Kind == CmdQuit {
				return
			}
			s.handleCommand(ctx, cmd, &wg)
		}
	}
}

func (s *Supervisor) handleCommand(ctx context.Context, cmd Command, wg *sync.WaitGroup) {
	switch cmd.Kind {
	case CmdPromptTurn:
		s.queuePrompt(ctx, cmd.Text, wg)
	case CmdCancelTask:
		s.cancelTask(cmd.TaskID)
	case CmdSetTimeout:
		s.setTimeout(cmd.TaskID, cmd.Duration)
	case CmdSetApprovalPolicy:
		s.policyMu.Lock()
		s.policy = cmd.Policy
		s.policyMu.Unlock()
	case CmdSessionNew:
		s.sessionNew()
	case CmdSessionResume:
		s.sessionResume(cmd.SessionID)
	case CmdSwitchModel:
		s.agentMu.Lock()
		s.ag.Model = cmd.Profile
		s.agentMu.Unlock()
	case CmdCompact:
		s.compact()
	}
}

// queuePrompt creates a new task and, unless a PendingApproval is
// outstanding (invariant 2), launches it on its own goroutine.
func (s *Supervisor) queuePrompt(ctx context.Context, text string, wg *sync.WaitGroup) {
	s.mu.Lock()
	if s.pendingApproval != nil {
		s.mu.Unlock()
		s.warn(nil, "cannot queue a new task while an approval is pending")
		return
	}
	id := s.nextTaskID
	s.nextTaskID++
	taskCtx, cancel := context.WithCancel(ContextWithTaskID(ctx, id))
	t := &Task{ID: id, Kind: "prompt", Details: text, StartedAt: time.Now(), State: StateRunning, cancel: cancel}
	s.tasks[id] = t
	s.mu.Unlock()

	s.emit(Event{Kind: EvTaskQueued, TaskID: &id, Message: text})

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runPrompt(taskCtx, t)
	}()
}

func (s *Supervisor) runPrompt(ctx context.Context, t *Task) {
	s.agentMu.Lock()
	defer s.agentMu.Unlock()

	id := t.ID
	s.emit(Event{Kind: EvTaskStarted, TaskID: &id})

	hooks := agent.Hooks{
		OnToolCall: func(name, args string) {
			s.emit(Event{Kind: EvToolCall, TaskID: &id, ToolName: name, ToolArgs: args})
		},
		OnToolResult: func(name, args, result string) {
			s.emit(Event{Kind: EvToolResult, TaskID: &id, ToolName: name, ToolArgs: args, ToolResult: result})
		},
		OnTokenUsage: func(prompt, completion uint64) {
			s.sessionTotalTokens += prompt + completion
			s.emit(Event{Kind: EvTokenUsage, TaskID: &id, PromptTokens: prompt, CompletionTokens: completion, SessionTotal: s.sessionTotalTokens})
		},
		OnReasoningTrace: func(field, text string) {
			s.emit(Event{Kind: EvReasoningTrace, TaskID: &id, ReasoningField: field, ReasoningText: text})
		},
	}

	response, err := s.ag.RunTurn(ctx, t.Details, hooks)

	s.mu.Lock()
	if err != nil {
		t.FinalResponse = ""
	} else {
		t.FinalResponse = response
	}
	delete(s.tasks, t.ID)
	s.history = append(s.history, t.snapshot())
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
	s.mu.Unlock()

	if err != nil {
		s.emit(Event{Kind: EvTaskFailed, TaskID: &id, Message: s.describeFailure(err, ctx)})
		return
	}

	s.emit(Event{Kind: EvTaskCompleted, TaskID: &id, Response: response})
	s.saveActiveSession()
}

// describeFailure turns an Agent-loop error into the §7 user-visible
// message, special-casing cancellation and the context-limit guidance.
func (s *Supervisor) describeFailure(err error, ctx context.Context) string {
	if ctx.Err() != nil {
		return "cancelled"
	}
	var agentErr *errs.AgentError
	if asAgentError(err, &agentErr) {
		return agentErr.Error()
	}
	return err.Error()
}

func asAgentError(err error, target **errs.AgentError) bool {
	ae, ok := err.(*errs.AgentError)
	if ok {
		*target = ae
	}
	return ok
}

func (s *Supervisor) saveActiveSession() {
	if s.activeSessionID == "" {
		return
	}
	snap := session.Snapshot{ID: s.activeSessionID, CreatedAt: s.activeSessionCreatedAt, Messages: s.ag.Messages}
	if err := s.store.Save(s.activeSessionID, snap); err != nil {
		s.emit(Event{Kind: EvError, Message: fmt.Sprintf("save session %s: %v", s.activeSessionID, err)})
		return
	}
	s.emit(Event{Kind: EvSessionSaved, SessionID: s.activeSessionID})
}

// RequestApproval is the hook each approval-gated Tool is constructed
// with (internal/fetchtool, and any shell tool the caller wires up). It
// resolves the process-wide ApprovalPolicy, raises PendingApproval to
// the decider when policy is Ask, and honors ctx cancellation by
// denying its own outstanding request rather than blocking forever
// (§4.3 cancellation semantics: "If a PendingApproval targets that
// task, deny it immediately").
//
// The spec's "assign the incoming request to the oldest Running task"
// ordering (§4.2) degenerates to a no-op here: invariant 1 means only
// one task ever holds the Agent, so only one task can ever be
// WaitingApproval at a time (see DESIGN.md).
func (s *Supervisor) RequestApproval(ctx context.Context, taskID uint64, command, risk string, mutation, privesc bool, why string) (bool, error) {
	now := time.Now()
	s.policyMu.Lock()
	effective := s.policy.Effective(now)
	s.policyMu.Unlock()

	switch effective {
	case approval.PolicyAll, approval.PolicyUntil:
		return true, nil
	case approval.PolicyNone:
		return false, nil
	}

	req := s.broker.Handle().RequestRaw(command, risk, mutation, privesc, why)

	s.mu.Lock()
	s.pendingApproval = req
	s.pendingTaskID = taskID
	if t, ok := s.tasks[taskID]; ok {
		t.State = StateWaitingApproval
		t.WaitCommand, t.WaitRisk, t.WaitMutation, t.WaitPrivesc, t.WaitWhy = command, risk, mutation, privesc, why
		t.WaitSince = now
	}
	s.mu.Unlock()

	approvalID := fmt.Sprintf("%d-%d", taskID, now.UnixNano())
	s.emit(Event{Kind: EvTaskWaitingApproval, TaskID: &taskID, ApprovalID: approvalID, Command: command, Risk: risk, Mutation: mutation, Privesc: privesc, Why: why})

	resultCh := make(chan approval.Verdict, 1)
	go func() { resultCh <- req.Result() }()

	var verdict approval.Verdict
	select {
	case verdict = <-resultCh:
	case <-ctx.Done():
		req.DenyRequest()
		verdict = <-resultCh
	}

	s.mu.Lock()
	if s.pendingApproval == req {
		s.pendingApproval = nil
	}
	if t, ok := s.tasks[taskID]; ok && t.State == StateWaitingApproval {
		t.State = StateRunning
	}
	s.mu.Unlock()

	return verdict == approval.Approve, ctx.Err()
}

// cancelTask implements §4.3's cancellation sequence: deny any pending
// approval for this task first, then flip it to Cancelling and cancel
// its context so the Agent loop observes it at its next suspension
// point.
func (s *Supervisor) cancelTask(taskID *uint64) {
	if taskID == nil {
		s.warn(nil, "cancel requires a task id")
		return
	}
	s.mu.Lock()
	t, ok := s.tasks[*taskID]
	if !ok {
		s.mu.Unlock()
		s.warn(taskID, "no such task")
		return
	}
	if t.State == StateCancelling {
		s.mu.Unlock()
		return // monotonic: already cancelling
	}
	if s.pendingApproval != nil && s.pendingTaskID == *taskID {
		s.pendingApproval.DenyRequest()
	}
	t.State = StateCancelling
	t.CancelSince = time.Now()
	s.mu.Unlock()

	s.emit(Event{Kind: EvTaskCancelling, TaskID: taskID})
	t.cancel()
}

// setTimeout sets TimeoutAt on a task, per §4.3: when id is omitted it
// only resolves when exactly one task is running.
func (s *Supervisor) setTimeout(taskID *uint64, d time.Duration) {
	s.mu.Lock()
	var t *Task
	var warnMsg string
	switch {
	case taskID != nil:
		t = s.tasks[*taskID]
		if t == nil {
			warnMsg = "no such task"
		}
	case len(s.tasks) == 0:
		warnMsg = "no task is running"
	case len(s.tasks) != 1:
		warnMsg = "Task id required: more than one task is running"
	default:
		for _, only := range s.tasks {
			t = only
		}
	}
	if t != nil {
		at := time.Now().Add(d)
		t.TimeoutAt = &at
	}
	s.mu.Unlock()

	if warnMsg != "" {
		s.warn(taskID, "%s", warnMsg)
	}
}

func (s *Supervisor) sweepTimeouts() {
	now := time.Now()
	var expired []*Task
	s.mu.Lock()
	for _, t := range s.tasks {
		if t.TimeoutAt != nil && !now.Before(*t.TimeoutAt) && t.State != StateCancelling {
			expired = append(expired, t)
		}
	}
	s.mu.Unlock()

	for _, t := range expired {
		id := t.ID
		s.warn(&id, "Task #%d hit timeout; cancelling.", id)
		s.cancelTask(&id)
	}
}

func (s *Supervisor) sessionNew() {
	id, err := s.store.CreateNewSession("session", nil)
	if err != nil {
		s.emit(Event{Kind: EvError, Message: err.Error()})
		return
	}
	s.agentMu.Lock()
	s.ag.Messages = nil
	s.agentMu.Unlock()
	s.activeSessionID = id
	s.activeSessionCreatedAt = time.Now().UTC()
	s.emit(Event{Kind: EvSessionCreated, SessionID: id})
}

func (s *Supervisor) sessionResume(id string) {
	if id == "" {
		last, err := s.store.ResolveLast()
		if err != nil {
			s.emit(Event{Kind: EvError, Message: err.Error()})
			return
		}
		if last == "" {
			s.warn(nil, "no previous session to resume")
			return
		}
		id = last
	}
	snap, err := s.store.Load(id)
	if err != nil {
		s.emit(Event{Kind: EvError, Message: err.Error()})
		return
	}
	s.agentMu.Lock()
	s.ag.Messages = snap.Messages
	s.agentMu.Unlock()
	if err := s.store.Save(id, snap); err != nil {
		s.emit(Event{Kind: EvError, Message: err.Error()})
		return
	}
	s.activeSessionID = id
	s.activeSessionCreatedAt = snap.CreatedAt
	s.emit(Event{Kind: EvSessionResumed, SessionID: id})
}

// compactKeepMessages bounds how much recent conversation survives a
// Compact pass; everything older is folded into one synthetic summary
// message. The exact figure is implementation-defined (§4.3: "bounded
// summarization pass (implementation-defined)").
const compactKeepMessages = 20

func (s *Supervisor) compact() {
	s.agentMu.Lock()
	defer s.agentMu.Unlock()

	if len(s.ag.Messages) <= compactKeepMessages {
		s.emit(Event{Kind: EvSessionCompacted, SessionID: s.activeSessionID})
		return
	}

	cut := len(s.ag.Messages) - compactKeepMessages
	dropped := s.ag.Messages[:cut]
	kept := s.ag.Messages[cut:]

	summary := session.Message{
		Role:    session.RoleAssistant,
		Content: fmt.Sprintf("[earlier conversation compacted: %d messages summarized]", len(dropped)),
	}
	s.ag.Messages = append([]session.Message{summary}, kept...)
	s.emit(Event{Kind: EvSessionCompacted, SessionID: s.activeSessionID})
}

// ListTasks returns a snapshot of every in-flight task.
func (s *Supervisor) ListTasks() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.snapshot())
	}
	return out
}

// History returns the completed/failed task ring, oldest first.
func (s *Supervisor) History() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, len(s.history))
	copy(out, s.history)
	return out
}
