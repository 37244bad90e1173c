package i18n

// EnMessages English message catalog
var EnMessages = map[string]string{
	// UI - Title
	"app.title": "vibe",

	// UI - Status bar
	"status.ready":     "Ready",
	"status.streaming": "Streaming...",
	"status.clearing":  "Clearing history...",
	"status.blocked":   "Unavailable",
	"status.tokens":    "%d tokens · $%.4f",
	"status.offline":   "offline",

	// UI - Input
	"input.placeholder": "Type a message... (enter to send)",

	// UI - Help line
	"help.send":      "send",
	"help.interrupt": "interrupt",
	"help.clear":     "clear history",
	"help.scroll":    "scroll",
	"help.quit":      "quit",

	// UI - Transcript
	"role.user":        "You",
	"role.assistant":   "Assistant",
	"role.system":      "System",
	"transcript.empty": "No messages yet.",

	// Errors
	"error.init":      "Agent failed to initialize: %s",
	"error.init_hint": "Fix the configuration and restart. Press ctrl+c to quit.",
	"error.busy":      "Busy, try again when the current action finishes.",

	// REPL
	"repl.welcome": "vibe · model %s · ctrl+l clears the history · ctrl+d quits",
	"repl.bye":     "Bye.",

	// Commands
	"cmd.init.created": "Wrote %s",
	"cmd.init.exists":  "%s already exists, left unchanged",
}
