// Package cli parses vitalink command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun     Command = "run"
	CommandEnable  Command = "enable"
	CommandDisable Command = "disable"
	CommandStatus  Command = "status"
	CommandScan    Command = "scan"
	CommandSay     Command = "say"
	CommandHistory Command = "history"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:     {},
	CommandEnable:  {},
	CommandDisable: {},
	CommandStatus:  {},
	CommandScan:    {},
	CommandSay:     {},
	CommandHistory: {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

// takesArg lists commands that consume exactly one trailing argument.
var takesArg = map[Command]string{
	CommandScan: "a file path",
	CommandSay:  "a message",
}

type Parsed struct {
	Command    Command
	Arg        string
	ConfigPath string
	Debug      bool
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--debug":
			parsed.Debug = true
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp

			rest := args[i+1:]
			if want, ok := takesArg[cmd]; ok {
				if len(rest) != 1 {
					return Parsed{}, fmt.Errorf("%s requires %s", cmd, want)
				}
				parsed.Arg = rest[0]
				return parsed, nil
			}
			if len(rest) != 0 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--debug] <command>

Commands:
  run         Start the interaction session in the foreground
  enable      Turn voice mode on in the running session
  disable     Turn voice mode off
  status      Print current voice state
  scan PATH   Analyze a food or document photo
  say TEXT    Send a typed chat message
  history     Print recent scan records
  devices     List available input devices
  doctor      Run configuration and environment checks
  version     Print version information
  help        Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/vitalink/config.toml)
  --debug         Log at debug level
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
