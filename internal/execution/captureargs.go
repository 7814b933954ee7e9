package execution

import "strconv"

// buildCapturePaneArgs composes a `tmux capture-pane` argument vector
// from the caller-facing options. -p always prints to stdout so the
// transport wrapper can capture it as ordinary process output.
func buildCapturePaneArgs(paneID string, options CapturePaneOptions) []string {
	args := []string{"capture-pane", "-p", "-t", paneID}
	if options.StartLine != nil {
		args = append(args, "-S", strconv.Itoa(*options.StartLine))
	} else {
		args = append(args, "-S", "-")
	}
	if options.EndLine != nil {
		args = append(args, "-E", strconv.Itoa(*options.EndLine))
	}
	if options.JoinWrapped {
		args = append(args, "-J")
	}
	if options.PreserveTrailingSpaces {
		args = append(args, "-N")
	}
	if options.IncludeEscapeSequences {
		args = append(args, "-e")
	}
	if options.IncludeAlternateScreen {
		args = append(args, "-a")
	}
	return args
}
