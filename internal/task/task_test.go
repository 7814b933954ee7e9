package task

import (
	"context"
	"testing"
	"time"

	"github.com/0xfe/buddy-sub001/internal/agent"
	"github.com/0xfe/buddy-sub001/internal/approval"
	"github.com/0xfe/buddy-sub001/internal/session"
)

// scriptedClient replays one Turn per call, blocking on a gate channel
// before each response so tests can control exactly when a task
// advances through the Agent loop.
type scriptedClient struct {
	turns []agent.Turn
	idx   int
	gate  chan struct{} // closed/sent-to once per call if non-nil
}

func (c *scriptedClient) Complete(ctx context.Context, model string, messages []session.Message) (agent.Turn, error) {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return agent.Turn{}, ctx.Err()
		}
	}
	i := c.idx
	c.idx++
	if i >= len(c.turns) {
		<-ctx.Done()
		return agent.Turn{}, ctx.Err()
	}
	return c.turns[i], nil
}

func newTestSupervisor(t *testing.T, client agent.ModelClient) (*Supervisor, *approval.Broker) {
	t.Helper()
	store, err := session.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	broker := approval.NewBroker()
	ag := agent.New(client, "test-model", 20, 0, nil)
	sup := NewSupervisor(ag, store, broker, 4)
	if err := sup.InitializeSession("", false, "test"); err != nil {
		t.Fatalf("InitializeSession: %v", err)
	}
	return sup, broker
}

func drainUntil(t *testing.T, events <-chan Envelope, want EventKind, timeout time.Duration) Envelope {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case env := <-events:
			if env.Event.Kind == want {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %v", want)
		}
	}
}

func TestPromptTurnLifecycleQueuedStartedCompleted(t *testing.T) {
	client := &scriptedClient{turns: []agent.Turn{{Content: "ok"}}}
	sup, _ := newTestSupervisor(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	sup.Commands() <- Command{Kind: CmdPromptTurn, Text: "hello"}

	queued := drainUntil(t, sup.Events(), EvTaskQueued, time.Second)
	if queued.Event.TaskID == nil || *queued.Event.TaskID != 0 {
		t.Fatalf("first task id = %v, want 0", queued.Event.TaskID)
	}

	started := drainUntil(t, sup.Events(), EvTaskStarted, time.Second)
	if *started.Event.TaskID != 0 {
		t.Fatalf("started task id = %d, want 0", *started.Event.TaskID)
	}

	completed := drainUntil(t, sup.Events(), EvTaskCompleted, time.Second)
	if completed.Event.Response != "ok" {
		t.Fatalf("completed response = %q, want %q", completed.Event.Response, "ok")
	}

	drainUntil(t, sup.Events(), EvSessionSaved, time.Second)
}

func TestTaskIDsNeverRepeat(t *testing.T) {
	client := &scriptedClient{turns: []agent.Turn{{Content: "a"}, {Content: "b"}}}
	sup, _ := newTestSupervisor(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	sup.Commands() <- Command{Kind: CmdPromptTurn, Text: "first"}
	first := drainUntil(t, sup.Events(), EvTaskQueued, time.Second)
	drainUntil(t, sup.Events(), EvTaskCompleted, time.Second)

	sup.Commands() <- Command{Kind: CmdPromptTurn, Text: "second"}
	second := drainUntil(t, sup.Events(), EvTaskQueued, time.Second)
	drainUntil(t, sup.Events(), EvTaskCompleted, time.Second)

	if *first.Event.TaskID == *second.Event.TaskID {
		t.Fatalf("task ids repeated: %d == %d", *first.Event.TaskID, *second.Event.TaskID)
	}
}

func TestCancelTaskDeniesPendingApprovalFirst(t *testing.T) {
	gate := make(chan struct{})
	client := &scriptedClient{turns: []agent.Turn{{Content: "unreachable"}}, gate: gate}
	sup, _ := newTestSupervisor(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	sup.Commands() <- Command{Kind: CmdPromptTurn, Text: "go"}
	queued := drainUntil(t, sup.Events(), EvTaskQueued, time.Second)
	taskID := *queued.Event.TaskID
	drainUntil(t, sup.Events(), EvTaskStarted, time.Second)

	// Raise a PendingApproval directly (simulating a tool mid-execution
	// asking for approval) before letting the scripted model respond.
	approvalDone := make(chan bool, 1)
	approvalErrC := make(chan error, 1)
	go func() {
		ok, err := sup.RequestApproval(ContextWithTaskID(ctx, taskID), taskID, "rm -rf /", "high", true, false, "cleanup")
		approvalDone <- ok
		approvalErrC <- err
	}()

	drainUntil(t, sup.Events(), EvTaskWaitingApproval, time.Second)

	sup.Commands() <- Command{Kind: CmdCancelTask, TaskID: &taskID}
	drainUntil(t, sup.Events(), EvTaskCancelling, time.Second)

	select {
	case ok := <-approvalDone:
		if ok {
			t.Fatal("pending approval should be auto-denied on cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for approval to resolve after cancel")
	}

	close(gate) // let the scripted client's Complete observe ctx.Done and return
	failed := drainUntil(t, sup.Events(), EvTaskFailed, time.Second)
	if failed.Event.Message != "cancelled" {
		t.Fatalf("failure message = %q, want %q", failed.Event.Message, "cancelled")
	}
}

func TestSetTimeoutRequiresTaskIDWhenMultipleRunning(t *testing.T) {
	gate := make(chan struct{})
	client := &scriptedClient{turns: []agent.Turn{{Content: "a"}, {Content: "b"}}, gate: gate}
	sup, _ := newTestSupervisor(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	// Two tasks cannot truly run concurrently against one Agent (invariant
	// 1 serializes them), but both can be *queued* and the first one
	// blocks on the gate, so the supervisor's tasks map briefly — this test
	// only needs the ambiguity check, so drive it directly instead.
	sup.mu.Lock()
	sup.tasks[100] = &Task{ID: 100, State: StateRunning, cancel: func() {}}
	sup.tasks[101] = &Task{ID: 101, State: StateRunning, cancel: func() {}}
	sup.mu.Unlock()

	sup.Commands() <- Command{Kind: CmdSetTimeout, Duration: 30 * time.Second}
	warn := drainUntil(t, sup.Events(), EvWarning, time.Second)
	if warn.Event.Message != "Task id required: more than one task is running" {
		t.Fatalf("warning = %q", warn.Event.Message)
	}
	close(gate)
}

func TestApprovalPolicyAllShortCircuitsWithoutWaitingApprovalEvent(t *testing.T) {
	client := &scriptedClient{turns: []agent.Turn{{Content: "done"}}}
	sup, _ := newTestSupervisor(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	sup.Commands() <- Command{Kind: CmdSetApprovalPolicy, Policy: approval.PolicyState{Kind: approval.PolicyAll}}
	// Give the supervisor a tick to apply the policy command before the
	// approval request races it.
	time.Sleep(20 * time.Millisecond)

	ok, err := sup.RequestApproval(ctx, 0, "ls", "low", false, false, "listing")
	if err != nil {
		t.Fatalf("RequestApproval error: %v", err)
	}
	if !ok {
		t.Fatal("PolicyAll should auto-approve")
	}
}

func TestSessionSavedFollowsTaskCompleted(t *testing.T) {
	client := &scriptedClient{turns: []agent.Turn{{Content: "ok"}}}
	sup, _ := newTestSupervisor(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	sup.Commands() <- Command{Kind: CmdPromptTurn, Text: "hi"}

	var sawCompleted bool
	deadline := time.After(2 * time.Second)
	for {
		select {
		case env := <-sup.Events():
			switch env.Event.Kind {
			case EvTaskCompleted:
				sawCompleted = true
			case EvSessionSaved:
				if !sawCompleted {
					t.Fatal("SessionSaved observed before TaskCompleted")
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for SessionSaved")
		}
	}
}
