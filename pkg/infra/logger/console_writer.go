package logger

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// ConsoleHook mirrors every entry to a second writer, normally stdout,
// so the file log stays the source of truth while operators still see
// output in the terminal.
type ConsoleHook struct {
	out io.Writer
}

func NewConsoleHook(out io.Writer) *ConsoleHook {
	return &ConsoleHook{out: out}
}

func (h *ConsoleHook) Fire(entry *logrus.Entry) error {
	line, err := entry.Logger.Formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(h.out, string(line))
	return err
}

func (h *ConsoleHook) Levels() []logrus.Level {
	return logrus.AllLevels
}
