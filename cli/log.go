package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

func init() {
	log.SetFormatter(&levelFormatter{
		colorize: term.IsTerminal(int(os.Stderr.Fd())),
	})
}

// levelFormatter prints one line per entry with a bracketed, optionally
// colored level tag. Colors only apply when stderr is a terminal.
type levelFormatter struct {
	colorize bool
}

var levelColors = map[log.Level]string{
	log.DebugLevel: "\x1b[36;1m", // bright cyan
	log.InfoLevel:  "\x1b[32;1m", // bright green
	log.WarnLevel:  "\x1b[33;1m", // bright yellow
	log.ErrorLevel: "\x1b[31;1m", // bright red
	log.FatalLevel: "\x1b[31;1m",
	log.PanicLevel: "\x1b[31;1m",
}

func (f *levelFormatter) Format(entry *log.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	name := strings.ToUpper(entry.Level.String())
	if name == "WARNING" {
		name = "WARN"
	}
	tag := "[" + name + "]"
	if f.colorize {
		if color, known := levelColors[entry.Level]; known {
			tag = fmt.Sprintf("[%s%s\x1b[0m]", color, name)
		}
	}
	// INFO and WARN are a character shorter than the rest; pad so messages
	// line up.
	if len(name) == 4 {
		tag += " "
	}

	fmt.Fprintf(b, "%s %s %s\n", entry.Time.Format("2006-01-02 15:04:05"), tag, entry.Message)
	return b.Bytes(), nil
}
