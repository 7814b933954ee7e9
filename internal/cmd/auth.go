package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xfe/buddy-sub001/internal/config"
	"github.com/0xfe/buddy-sub001/internal/tokenstore"
)

// authCmd inspects the persisted `auth.login` token store (§3, §6.5).
// Performing the OAuth handshake itself is out of scope for this core
// (§1 Non-goals); what belongs here is what the core actually owns:
// reading the at-rest tokens and reporting whether they're due for
// refresh, and letting an operator clear them.
var authCmd = &cobra.Command{
	Use:     "auth",
	GroupID: GroupDiag,
	Short:   "Inspect persisted login tokens",
	RunE:    requireSubcommand,
}

var authStatusCmd = &cobra.Command{
	Use:   "status <provider>",
	Short: "Show whether a provider's stored tokens need refresh",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthStatus,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout <provider>",
	Short: "Delete a provider's persisted tokens",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthLogout,
}

func init() {
	authCmd.AddCommand(authStatusCmd, authLogoutCmd)
}

func openTokenStore() (*tokenstore.Store, error) {
	root, err := config.ConfigRoot()
	if err != nil {
		return nil, err
	}
	return tokenstore.NewStore(filepath.Join(root, "tokens"))
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	store, err := openTokenStore()
	if err != nil {
		return err
	}
	tok, found, err := store.Load(args[0])
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("%s: not logged in\n", args[0])
		return nil
	}
	if tok.NeedsRefresh(time.Now()) {
		fmt.Printf("%s: logged in, token refresh due\n", args[0])
	} else {
		fmt.Printf("%s: logged in, token valid\n", args[0])
	}
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	store, err := openTokenStore()
	if err != nil {
		return err
	}
	if err := store.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("%s: logged out\n", args[0])
	return nil
}
