package handlers

import "strings"

// Kind identifies a chat command.
type Kind int

const (
	KindHelp Kind = iota
	KindAdd
	KindList
	KindPurge
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindList:
		return "list"
	case KindPurge:
		return "purge"
	default:
		return "help"
	}
}

// Command is a parsed chat command. Arg holds the first argument, if any.
type Command struct {
	Kind Kind
	Arg  string
}

// ParseCommand splits text on whitespace. Unknown or missing verbs become help.
func ParseCommand(text string) Command {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{Kind: KindHelp}
	}

	var arg string
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch strings.ToLower(fields[0]) {
	case "add":
		return Command{Kind: KindAdd, Arg: arg}
	case "list":
		return Command{Kind: KindList}
	case "purge":
		return Command{Kind: KindPurge, Arg: arg}
	default:
		return Command{Kind: KindHelp}
	}
}

const (
	usageAdd   = "`add <timezone>` - add a clock role, e.g. `add America/New_York`"
	usageList  = "`list` - show the timezones tracked in this server"
	usagePurge = "`purge all|<timezone>` - remove clock roles"
)

func helpText() string {
	return "Mention me followed by a command:\n" + usageAdd + "\n" + usageList + "\n" + usagePurge
}
