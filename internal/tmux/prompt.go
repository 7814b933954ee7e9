package tmux

// PromptSetupScript is injected into every managed tmux pane before it
// accepts commands. It installs a precmd hook that bumps a monotonic
// command counter and folds it into the shell's own prompt, so the
// engine can recover (command id, exit code) pairs from a pane capture
// without needing a dedicated control channel. It supports bash, zsh,
// and a POSIX-sh fallback, and is idempotent (guarded by
// BUDDY_PROMPT_LAYOUT=v3) so re-running it against an already-
// bootstrapped pane is a no-op.
const PromptSetupScript = `if [ "${BUDDY_PROMPT_LAYOUT:-}" != "v3" ]; then ` +
	`BUDDY_PROMPT_LAYOUT=v3; ` +
	`BUDDY_CMD_SEQ=${BUDDY_CMD_SEQ:-0}; ` +
	`__buddy_next_id() { BUDDY_CMD_SEQ=$((BUDDY_CMD_SEQ + 1)); BUDDY_CMD_ID=$BUDDY_CMD_SEQ; }; ` +
	`__buddy_prompt_id() { printf '%s' "${BUDDY_CMD_ID:-0}"; }; ` +
	`if [ -n "${BASH_VERSION:-}" ]; then ` +
	`BUDDY_BASE_PS1=${BUDDY_BASE_PS1:-$PS1}; ` +
	`__buddy_precmd() { BUDDY_LAST_EXIT=$?; __buddy_next_id; }; ` +
	`case ";${PROMPT_COMMAND:-};" in ` +
	`  *";__buddy_precmd;"*) ;; ` +
	`  *) PROMPT_COMMAND="__buddy_precmd${PROMPT_COMMAND:+;${PROMPT_COMMAND}}" ;; ` +
	`esac; ` +
	`PS1='[buddy $(__buddy_prompt_id): ${BUDDY_LAST_EXIT:-0}] '"$BUDDY_BASE_PS1"; ` +
	`elif [ -n "${ZSH_VERSION:-}" ]; then ` +
	`BUDDY_BASE_PROMPT=${BUDDY_BASE_PROMPT:-$PROMPT}; ` +
	`__buddy_precmd() { __buddy_next_id; }; ` +
	`if (( ${precmd_functions[(Ie)__buddy_precmd]} == 0 )); then ` +
	`  precmd_functions=(__buddy_precmd $precmd_functions); ` +
	`fi; ` +
	`setopt PROMPT_SUBST; ` +
	`PROMPT='[buddy $(__buddy_prompt_id): %?] '"$BUDDY_BASE_PROMPT"; ` +
	`else ` +
	`BUDDY_BASE_PS1=${BUDDY_BASE_PS1:-$PS1}; ` +
	`PS1='[buddy $(__buddy_next_id): $?] '"$BUDDY_BASE_PS1"; ` +
	`fi; ` +
	`fi`
