package alert

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// ConsoleSink writes alerts to the terminal with color.
type ConsoleSink struct {
	out io.Writer
}

// NewConsoleSink creates a new console alert sink writing to stdout.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{out: os.Stdout}
}

// Name returns the sink identifier.
func (s *ConsoleSink) Name() string { return "console" }

// Send writes an alert with color-coded severity, one failed file per line.
func (s *ConsoleSink) Send(_ context.Context, alert types.Alert) error {
	var prefix string
	switch alert.Level {
	case types.AlertLevelError:
		prefix = color.RedString("[ERROR]")
	case types.AlertLevelWarning:
		prefix = color.YellowString("[WARN]")
	default:
		prefix = color.CyanString("[INFO]")
	}

	if _, err := fmt.Fprintf(s.out, "%s [%s] %s\n", prefix, alert.Dataset, alert.Message); err != nil {
		return err
	}
	for _, name := range alert.FailedFiles {
		if _, err := fmt.Fprintf(s.out, "    %s\n", name); err != nil {
			return err
		}
	}
	return nil
}
