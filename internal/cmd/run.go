package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xfe/buddy-sub001/internal/approval"
	"github.com/0xfe/buddy-sub001/internal/config"
	"github.com/0xfe/buddy-sub001/internal/diag"
	"github.com/0xfe/buddy-sub001/internal/duration"
	"github.com/0xfe/buddy-sub001/internal/session"
	"github.com/0xfe/buddy-sub001/internal/style"
	"github.com/0xfe/buddy-sub001/internal/task"
)

var runBackend string
var runSessionID string
var runResumeLast bool

var runCmd = &cobra.Command{
	Use:     "run",
	GroupID: GroupCore,
	Short:   "Start an interactive session against the agent runtime",
	RunE:    runRun,
}

func init() {
	runCmd.Flags().StringVar(&runBackend, "backend", "local", "execution backend: local or tmux")
	runCmd.Flags().StringVar(&runSessionID, "session", "", "resume a specific session id")
	runCmd.Flags().BoolVar(&runResumeLast, "resume", false, "resume the most recently used session")
}

// runRun owns the Supervisor for the process lifetime: it wires
// config/execution/tools, starts Supervisor.Run on its own goroutine,
// and drives a line-oriented REPL that turns stdin into task.Commands
// and renders the event stream back to stdout/stderr. Mirrors gastown's
// `cmd/gt/daemon.go` split between a long-running core and a thin CLI
// front end, collapsed into one process since this core has no
// separate daemon.
func runRun(cmd *cobra.Command, args []string) error {
	sink := diag.Stderr()

	cfg, err := loadConfig()
	if err != nil {
		sink.Error(nil, err.Error())
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	execCtx, err := buildExecution(ctx, cfg, runBackend)
	if err != nil {
		sink.Error(nil, err.Error())
		return err
	}
	defer execCtx.Close()

	storeDir, err := sessionStoreDir()
	if err != nil {
		sink.Error(nil, err.Error())
		return err
	}
	store, err := session.NewStore(storeDir)
	if err != nil {
		sink.Error(nil, err.Error())
		return err
	}

	sup, broker, fetchT, err := buildSupervisor(ctx, cfg, store, execCtx)
	if err != nil {
		sink.Error(nil, err.Error())
		return err
	}
	if fetchT != nil {
		defer fetchT.Close()
	}

	if err := sup.InitializeSession(runSessionID, runResumeLast, cfg.Agent.Name); err != nil {
		sink.Error(nil, err.Error())
		return err
	}

	go sup.Run(ctx)
	go drainEvents(sup, sink)

	fmt.Fprintf(os.Stdout, "%s ready (backend: %s). Type a prompt, or /quit to exit.\n", style.Bold.Render(config.Brand), execCtx.Summary())

	// A single stdin reader serves both the prompt REPL and the
	// approval decider: the Broker and the line scanner would
	// otherwise race for the same input stream, so incoming lines are
	// routed to whichever outstanding approval.Request exists before
	// falling through to command parsing.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	approvals := pendingApprovals(broker)
	var pending *approval.Request
	for {
		select {
		case req := <-approvals:
			pending = req
			fmt.Printf("approve %q (risk=%s, mutation=%v, privesc=%v)? [y/N] ", req.Command, req.Risk, req.Mutation, req.Privesc)
		case line, ok := <-lines:
			if !ok {
				sup.Commands() <- task.Command{Kind: task.CmdQuit}
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if pending != nil {
				verdict, ok := approval.ParseDecision(line)
				if !ok {
					fmt.Println("please answer y or n")
					continue
				}
				if verdict == approval.Approve {
					pending.ApproveRequest()
				} else {
					pending.DenyRequest()
				}
				pending = nil
				continue
			}
			if cmdLine, ok := parseSlashCommand(line); ok {
				sup.Commands() <- cmdLine
				if cmdLine.Kind == task.CmdQuit {
					return nil
				}
				continue
			}
			sup.Commands() <- task.Command{Kind: task.CmdPromptTurn, Text: line}
		case <-ctx.Done():
			sup.Commands() <- task.Command{Kind: task.CmdQuit}
			return nil
		}
	}
}

// pendingApprovals adapts the Broker's blocking Recv into a channel so
// it can sit in the same select loop as stdin, without spawning a
// second stdin reader. If a terminal isn't attached, requests are
// auto-denied immediately (see DESIGN.md's headless approval fallback
// decision) rather than surfaced on the channel at all.
func pendingApprovals(broker *approval.Broker) <-chan *approval.Request {
	out := make(chan *approval.Request)
	go func() {
		for {
			req := broker.Recv()
			if !approval.TerminalAvailable() {
				req.DenyRequest()
				continue
			}
			out <- req
		}
	}()
	return out
}

// parseSlashCommand translates the REPL's small slash-command surface
// (§4.3's external command set) into a task.Command. Anything not
// recognized is returned as ok=false, to be queued as a plain prompt.
func parseSlashCommand(line string) (task.Command, bool) {
	if !strings.HasPrefix(line, "/") {
		return task.Command{}, false
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return task.Command{Kind: task.CmdQuit}, true
	case "/cancel":
		var id *uint64
		if len(fields) > 1 {
			if v, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
				id = &v
			}
		}
		return task.Command{Kind: task.CmdCancelTask, TaskID: id}, true
	case "/timeout":
		if len(fields) < 2 {
			return task.Command{}, false
		}
		d, err := duration.Parse(fields[1])
		if err != nil {
			return task.Command{}, false
		}
		var id *uint64
		if len(fields) > 2 {
			if v, err := strconv.ParseUint(fields[2], 10, 64); err == nil {
				id = &v
			}
		}
		return task.Command{Kind: task.CmdSetTimeout, TaskID: id, Duration: d}, true
	case "/approve":
		if len(fields) < 2 {
			return task.Command{}, false
		}
		policy, ok := parsePolicyWord(fields[1])
		if !ok {
			return task.Command{}, false
		}
		return task.Command{Kind: task.CmdSetApprovalPolicy, Policy: policy}, true
	case "/session":
		if len(fields) < 2 {
			return task.Command{}, false
		}
		switch fields[1] {
		case "new":
			return task.Command{Kind: task.CmdSessionNew}, true
		case "resume":
			id := ""
			if len(fields) > 2 {
				id = fields[2]
			}
			return task.Command{Kind: task.CmdSessionResume, SessionID: id}, true
		}
		return task.Command{}, false
	case "/compact":
		return task.Command{Kind: task.CmdCompact}, true
	case "/model":
		if len(fields) < 2 {
			return task.Command{}, false
		}
		return task.Command{Kind: task.CmdSwitchModel, Profile: fields[1]}, true
	default:
		return task.Command{}, false
	}
}

// parsePolicyWord parses /approve's argument: all|none|ask|<duration>.
func parsePolicyWord(word string) (approval.PolicyState, bool) {
	switch word {
	case "all":
		return approval.PolicyState{Kind: approval.PolicyAll}, true
	case "none":
		return approval.PolicyState{Kind: approval.PolicyNone}, true
	case "ask":
		return approval.PolicyState{Kind: approval.PolicyAsk}, true
	default:
		d, err := duration.Parse(word)
		if err != nil {
			return approval.PolicyState{}, false
		}
		return approval.PolicyState{Kind: approval.PolicyUntil, Deadline: time.Now().Add(d)}, true
	}
}

// drainEvents renders each task.Envelope to stdout/stderr, using
// internal/diag for warnings/errors and internal/style for the handful
// of colored status words.
func drainEvents(sup *task.Supervisor, sink *diag.Sink) {
	for env := range sup.Events() {
		ev := env.Event
		switch ev.Kind {
		case task.EvTaskQueued:
			fmt.Printf("[task #%d] queued\n", taskIDOf(ev.TaskID))
		case task.EvTaskStarted:
			fmt.Printf("[task #%d] started\n", taskIDOf(ev.TaskID))
		case task.EvTaskWaitingApproval:
			fmt.Printf("[task #%d] %s approval requested: %s (risk=%s)\n",
				taskIDOf(ev.TaskID), style.RiskStyle(ev.Risk).Render(ev.Risk), ev.Command, ev.Risk)
		case task.EvTaskCancelling:
			fmt.Printf("[task #%d] cancelling\n", taskIDOf(ev.TaskID))
		case task.EvTaskCompleted:
			fmt.Printf("[task #%d] %s\n\n", taskIDOf(ev.TaskID), ev.Response)
		case task.EvTaskFailed:
			sink.Error(ev.TaskID, ev.Message)
		case task.EvSessionCreated:
			fmt.Printf("session created: %s\n", ev.SessionID)
		case task.EvSessionResumed:
			fmt.Printf("session resumed: %s\n", ev.SessionID)
		case task.EvSessionCompacted:
			fmt.Printf("session compacted: %s\n", ev.SessionID)
		case task.EvSessionSaved:
			// quiet by default; saving is routine
		case task.EvWarning:
			sink.Warn(ev.TaskID, ev.Message)
		case task.EvError:
			sink.Error(ev.TaskID, ev.Message)
		case task.EvTokenUsage:
			// surfaced only via /tokens in a fuller UI; quiet here
		case task.EvReasoningTrace:
			fmt.Printf("[task #%d] (%s) %s\n", taskIDOf(ev.TaskID), ev.ReasoningField, ev.ReasoningText)
		case task.EvToolCall:
			fmt.Printf("[task #%d] tool call %s(%s)\n", taskIDOf(ev.TaskID), ev.ToolName, ev.ToolArgs)
		case task.EvToolResult:
			fmt.Printf("[task #%d] tool result %s -> %s\n", taskIDOf(ev.TaskID), ev.ToolName, ev.ToolResult)
		}
	}
}

func taskIDOf(id *uint64) uint64 {
	if id == nil {
		return 0
	}
	return *id
}

