package voice

import "regexp"

// Category groups commands by what they act on.
type Category string

const (
	CategorySchedule   Category = "schedule"
	CategoryQuery      Category = "query"
	CategoryNote       Category = "note"
	CategoryNavigation Category = "navigation"
	CategoryControl    Category = "control"
)

// Actions understood by the planner.
const (
	ActionCreateTimeBlock = "create_time_block"
	ActionScheduleEvent   = "schedule_event"
	ActionQuerySchedule   = "query_schedule"
	ActionQueryFreeTime   = "query_free_time"
	ActionCreateNote      = "create_note"
	ActionSearchNotes     = "search_notes"
	ActionNavigate        = "navigate"
	ActionHelp            = "help"
	ActionCancel          = "cancel"
	ActionUndo            = "undo"
)

// Command is one recognizable intent. Patterns are tried in order; named
// groups (title, when, time, content, query, view) carry the arguments. A
// name may appear more than once in a pattern; the first non-empty one wins.
type Command struct {
	Action      string           `json:"action"`
	Category    Category         `json:"category"`
	Description string           `json:"description"`
	Examples    []string         `json:"examples"`
	Patterns    []*regexp.Regexp `json:"-"`
}

// Shared fragments. when/time are optional on most scheduling patterns.
const (
	whenExpr = `(?P<when>today|tomorrow|tonight|next \w+|this \w+|on \w+(?: \d{1,2})?|in \d+ (?:days?|weeks?|months?)|\w+day|(?:january|february|march|april|may|june|july|august|september|october|november|december)(?: \d{1,2})?)`
	timeExpr = `(?P<time>\d{1,2}(?::\d{2})?\s*(?:am|pm)?)`
	endExpr  = `[.!?]?\s*$`

	// schedTail requires a day or a time, in either order.
	schedTail = `(?:\s+` + whenExpr + `(?:\s+at\s+` + timeExpr + `)?|\s+at\s+` + timeExpr + `(?:\s+` + whenExpr + `)?)`
	// optTail allows neither.
	optTail = `(?:\s+` + whenExpr + `)?(?:\s+at\s+` + timeExpr + `)?(?:\s+` + whenExpr + `)?`
)

func re(expr string) *regexp.Regexp {
	return regexp.MustCompile(expr)
}

// commandTable is evaluated in order; on equal confidence the earlier
// command wins. The time-block and note entries sit above schedule_event
// because its "add|create <title> <when>" pattern also covers
// "add a time block ..." and "add a note ...".
var commandTable = []Command{
	{
		Action:      ActionCreateTimeBlock,
		Category:    CategorySchedule,
		Description: "Reserve a block of focused time",
		Examples:    []string{"Block time for deep work tomorrow", "Create a time block for writing at 9am"},
		Patterns: []*regexp.Regexp{
			re(`(?i)^(?:block|reserve)\s+(?:out\s+)?(?:(?:some\s+)?time\s+)?(?:for\s+)?(?P<title>.+?)` + optTail + endExpr),
			re(`(?i)^(?:create|add|make)\s+(?:a\s+)?time\s*block\s+(?:for\s+)?(?P<title>.+?)` + optTail + endExpr),
		},
	},
	{
		Action:      ActionCreateNote,
		Category:    CategoryNote,
		Description: "Capture a note",
		Examples:    []string{"Take a note: buy oat milk", "Remember that the rent is due", "Jot down gift ideas"},
		Patterns: []*regexp.Regexp{
			re(`(?i)^(?:take|make|add|create)\s+a\s+note\s*:?\s*(?P<content>.+?)` + endExpr),
			re(`(?i)^(?:note|remember)(?:\s+that)?\s*:?\s+(?P<content>.+?)` + endExpr),
			re(`(?i)^jot\s+down\s+(?P<content>.+?)` + endExpr),
		},
	},
	{
		Action:      ActionScheduleEvent,
		Category:    CategorySchedule,
		Description: "Schedule an event on the calendar",
		Examples:    []string{"Schedule gym tomorrow at 7am", "Add dentist appointment next friday at 10am", "Schedule team sync at 3pm on monday"},
		Patterns: []*regexp.Regexp{
			re(`(?i)^(?:schedule|add|create|book|set up)\s+(?:an?\s+)?(?P<title>.+?)` + schedTail + endExpr),
			re(`(?i)\bremind me to\s+(?P<title>.+?)` + schedTail + endExpr),
		},
	},
	{
		Action:      ActionQuerySchedule,
		Category:    CategoryQuery,
		Description: "Read back the schedule for a day",
		Examples:    []string{"What's on my schedule today?", "Show my calendar for next week", "What do I have tomorrow?"},
		Patterns: []*regexp.Regexp{
			re(`(?i)^what(?:'s| is)\s+(?:on\s+)?(?:my\s+)?(?:schedule|calendar|agenda)(?:\s+(?:for\s+)?(?P<when>.+?))?` + endExpr),
			re(`(?i)^(?:show|tell)\s+(?:me\s+)?my\s+(?:schedule|calendar|agenda)(?:\s+(?:for\s+)?(?P<when>.+?))?` + endExpr),
			re(`(?i)^what do i have(?:\s+(?:on\s+)?(?P<when>.+?))?` + endExpr),
			re(`(?i)\bwhat(?:'s| is) on my (?:schedule|calendar)`),
		},
	},
	{
		Action:      ActionQueryFreeTime,
		Category:    CategoryQuery,
		Description: "Find open time",
		Examples:    []string{"When am I free tomorrow?", "Find free time next week"},
		Patterns: []*regexp.Regexp{
			re(`(?i)^when am i free(?:\s+(?:on\s+)?(?P<when>.+?))?` + endExpr),
			re(`(?i)^(?:find|show)\s+(?:me\s+)?free\s+time(?:\s+(?:on\s+)?(?P<when>.+?))?` + endExpr),
		},
	},
	{
		Action:      ActionSearchNotes,
		Category:    CategoryNote,
		Description: "Search existing notes",
		Examples:    []string{"Find notes about taxes", "Search my notes for recipes"},
		Patterns: []*regexp.Regexp{
			re(`(?i)^(?:find|search|show)\s+(?:my\s+)?notes?\s+(?:about|for|on)\s+(?P<query>.+?)` + endExpr),
		},
	},
	{
		Action:      ActionNavigate,
		Category:    CategoryNavigation,
		Description: "Switch views",
		Examples:    []string{"Go to calendar", "Open notes", "Show week view"},
		Patterns: []*regexp.Regexp{
			re(`(?i)^(?:go\s+to|open|show|switch\s+to)\s+(?:the\s+)?(?P<view>calendar|planner|notes|chat|day view|week view|month view)` + endExpr),
		},
	},
	{
		Action:      ActionHelp,
		Category:    CategoryControl,
		Description: "List what can be said",
		Examples:    []string{"Help", "What can I say?"},
		Patterns: []*regexp.Regexp{
			re(`(?i)^(?:help|what can i say|what can you do)` + endExpr),
		},
	},
	{
		Action:      ActionCancel,
		Category:    CategoryControl,
		Description: "Stop the current action",
		Examples:    []string{"Cancel", "Never mind"},
		Patterns: []*regexp.Regexp{
			re(`(?i)^(?:cancel|stop|never\s*mind)` + endExpr),
		},
	},
	{
		Action:      ActionUndo,
		Category:    CategoryControl,
		Description: "Undo the last change",
		Examples:    []string{"Undo", "Undo that"},
		Patterns: []*regexp.Regexp{
			re(`(?i)^undo(?:\s+(?:that|last))?` + endExpr),
		},
	},
}

// Commands returns the built-in command table in evaluation order.
func Commands() []Command {
	out := make([]Command, len(commandTable))
	copy(out, commandTable)
	return out
}
