package cmd

import (
	"context"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xfe/buddy-sub001/internal/diag"
	"github.com/0xfe/buddy-sub001/internal/execution"
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: GroupDiag,
	Short:   "Probe which execution backends are usable on this host",
	RunE:    runDoctor,
}

// runDoctor probes the local environment the way gastown's own doctor
// command checks tool availability before a run: which binaries exist,
// and whether a managed tmux session can actually be stood up, printed
// through internal/diag's Section/Field layout rather than a bespoke
// report format.
func runDoctor(cmd *cobra.Command, args []string) error {
	sink := diag.Stderr()

	sink.Section("backends")
	sink.Field("local", "available")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := exec.LookPath("tmux"); err != nil {
		sink.Field("tmux", "not found on PATH")
	} else {
		execCtx, err := execution.LocalTmux(ctx, "", "doctor", 1, 1)
		if err != nil {
			sink.Field("tmux", "found, but failed to start a session: "+err.Error())
		} else {
			sink.Field("tmux", "available ("+execCtx.Summary()+")")
			execCtx.Close()
		}
	}

	for _, bin := range []string{"docker", "podman"} {
		if _, err := exec.LookPath(bin); err != nil {
			sink.Field(bin, "not found on PATH")
		} else {
			sink.Field(bin, "found on PATH")
		}
	}

	if _, err := exec.LookPath("ssh"); err != nil {
		sink.Field("ssh", "not found on PATH")
	} else {
		sink.Field("ssh", "found on PATH (target required at runtime via --backend ssh)")
	}

	sink.Section("config")
	cfg, err := loadConfig()
	if err != nil {
		sink.Field("buddy.toml", "failed to load: "+err.Error())
		return nil
	}
	sink.Field("agent.name", cfg.Agent.Name)
	sink.Field("api.model", cfg.API.Model)
	sink.Field("api.protocol", string(cfg.API.Protocol))
	sink.Field("api.auth", string(cfg.API.Auth))

	return nil
}
