package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xfe/buddy-sub001/internal/session"
	"github.com/0xfe/buddy-sub001/internal/style"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	GroupID: GroupCore,
	Short:   "Inspect the Session Store",
	RunE:    requireSubcommand,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known sessions, most recently used first",
	RunE:  runSessionList,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a session's messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

func init() {
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd)
}

func openStore() (*session.Store, error) {
	dir, err := sessionStoreDir()
	if err != nil {
		return nil, err
	}
	return session.NewStore(dir)
}

func runSessionList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	summaries, err := store.List()
	if err != nil {
		return err
	}

	t := style.NewTable(
		style.Column{Name: "ID", Width: 28},
		style.Column{Name: "UPDATED", Width: 20},
	)
	for _, s := range summaries {
		updated := time.UnixMilli(int64(s.UpdatedAtMillis)).Format(time.RFC3339)
		t.AddRow(s.ID, updated)
	}
	fmt.Print(t.Render())
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	snap, err := store.Load(args[0])
	if err != nil {
		return err
	}
	for _, m := range snap.Messages {
		fmt.Printf("[%s] %s\n", m.Role, m.Content)
	}
	return nil
}
