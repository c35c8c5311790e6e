// Package desktop adapts host facilities (clipboard, notifications) to the
// collaborator interfaces the conversation core calls.
package desktop

import (
	"github.com/atotto/clipboard"
	"github.com/gen2brain/beeep"
	"github.com/pkg/errors"
)

// Replaced in tests; the real implementations need a display.
var (
	writeClipboard = clipboard.WriteAll
	unsupported    = clipboard.Unsupported
	notify         = func(title, message string) error { return beeep.Notify(title, message, "") }
)

// Clipboard writes to the system clipboard.
type Clipboard struct{}

func (Clipboard) Write(text string) error {
	if unsupported {
		return errors.New("clipboard unsupported on this host")
	}
	if err := writeClipboard(text); err != nil {
		return errors.Wrap(err, "write clipboard")
	}
	return nil
}

// Notifier shows a desktop notification. A disabled Notifier is a no-op.
type Notifier struct {
	Disabled bool
}

func (n Notifier) Notify(title, message string) error {
	if n.Disabled {
		return nil
	}
	return errors.Wrap(notify(title, message), "desktop notify")
}
