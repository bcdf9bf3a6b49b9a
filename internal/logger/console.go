package logger

import (
	"log"
	"os"

	"github.com/fatih/color"

	"github.com/nix-community/nix-closure-diff/internal/utils"
)

// ConsoleLogger writes leveled, colorized messages to stderr. Color
// choices follow whatever color.NoColor is set to at construction time;
// fatih/color only auto-detects NO_COLOR and non-tty/TERM=dumb output on
// its own, so NO_COLOR/CLICOLOR/CLICOLOR_FORCE precedence is resolved by
// the caller (see cmd/nix-closure-diff's applyColorMode) before
// RefreshColorPrefixes is called.
type ConsoleLogger struct {
	print *log.Logger
	debug *log.Logger
	info  *log.Logger
	warn  *log.Logger
	error *log.Logger
	cmd   *color.Color

	level LogLevel
}

func NewConsoleLogger() *ConsoleLogger {
	l := &ConsoleLogger{
		print: log.New(os.Stderr, "", 0),
		level: LogLevelInfo,
	}
	l.RefreshColorPrefixes()
	return l
}

func (l *ConsoleLogger) SetLogLevel(level LogLevel) {
	l.level = level
}

func (l *ConsoleLogger) GetLogLevel() LogLevel {
	return l.level
}

func (l *ConsoleLogger) Print(v ...any) {
	l.print.Print(v...)
}

func (l *ConsoleLogger) Printf(format string, v ...any) {
	l.print.Printf(format, v...)
}

func (l *ConsoleLogger) Debug(v ...any) {
	if l.level > LogLevelDebug {
		return
	}
	l.debug.Println(v...)
}

func (l *ConsoleLogger) Debugf(format string, v ...any) {
	if l.level > LogLevelDebug {
		return
	}
	l.debug.Printf(format+"\n", v...)
}

func (l *ConsoleLogger) Info(v ...any) {
	if l.level > LogLevelInfo {
		return
	}
	l.info.Println(v...)
}

func (l *ConsoleLogger) Infof(format string, v ...any) {
	if l.level > LogLevelInfo {
		return
	}
	l.info.Printf(format+"\n", v...)
}

func (l *ConsoleLogger) Warn(v ...any) {
	if l.level > LogLevelWarn {
		return
	}
	l.warn.Println(v...)
}

func (l *ConsoleLogger) Warnf(format string, v ...any) {
	if l.level > LogLevelWarn {
		return
	}
	l.warn.Printf(format+"\n", v...)
}

func (l *ConsoleLogger) Error(v ...any) {
	if l.level > LogLevelError {
		return
	}
	l.error.Println(v...)
}

func (l *ConsoleLogger) Errorf(format string, v ...any) {
	if l.level > LogLevelError {
		return
	}
	l.error.Printf(format+"\n", v...)
}

// CmdArray logs the exact argv a Backend subprocess invocation used,
// at debug level, since it's only useful when diagnosing a fallback.
func (l *ConsoleLogger) CmdArray(argv []string) {
	if l.level > LogLevelDebug {
		return
	}
	l.print.Println(l.cmd.Sprintf("$ %v", utils.EscapeAndJoinArgs(argv)))
}

// RefreshColorPrefixes rebuilds the colorized prefixes. Call after
// toggling color.NoColor so an already-constructed logger picks up the
// new setting.
func (l *ConsoleLogger) RefreshColorPrefixes() {
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	boldYellow := color.New(color.FgYellow).Add(color.Bold)
	boldRed := color.New(color.FgRed).Add(color.Bold)

	l.debug = log.New(os.Stderr, gray.Sprint("debug: "), 0)
	l.info = log.New(os.Stderr, green.Sprint("info: "), 0)
	l.warn = log.New(os.Stderr, boldYellow.Sprint("warning: "), 0)
	l.error = log.New(os.Stderr, boldRed.Sprint("error: "), 0)
	l.cmd = color.New(color.FgBlue)
}
