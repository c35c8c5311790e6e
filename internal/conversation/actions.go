package conversation

import (
	"strings"

	"github.com/rs/zerolog/log"

	"unichatclient/internal/models"
)

// RegenerateMarker prefixes the content of a regenerated assistant turn.
const RegenerateMarker = "(regenerated) "

const (
	ShareTitle        = "Chat response"
	copyConfirmTitle  = "Copied"
	copyConfirmNotice = "Response copied to clipboard"
)

// Clipboard writes text to the host clipboard.
type Clipboard interface {
	Write(text string) error
}

// Sharer hands text to a platform share sheet.
type Sharer interface {
	Share(title, text string) error
}

// Notifier shows a short confirmation to the user.
type Notifier interface {
	Notify(title, message string) error
}

// ShareResult reports what Share ended up doing.
type ShareResult string

const (
	ShareShared ShareResult = "shared"
	ShareCopied ShareResult = "copied"
	ShareFailed ShareResult = "failed"
)

// Regenerate marks a settled assistant turn as regenerated. The marker is
// never stacked. The remote model is not called again.
func (c *Conversation) Regenerate(turnID int64) (models.Turn, error) {
	return c.store.update(turnID, func(t *models.Turn) error {
		if t.Role != models.RoleAssistant || t.Pending {
			return ErrTurnNotFound
		}
		content := t.Content
		for strings.HasPrefix(content, RegenerateMarker) {
			content = strings.TrimPrefix(content, RegenerateMarker)
		}
		t.Content = RegenerateMarker + content
		return nil
	})
}

// ToggleFeedback sets kind on an assistant turn, or clears it when kind is
// already set. Like and dislike are mutually exclusive.
func (c *Conversation) ToggleFeedback(turnID int64, kind models.Feedback) (models.Turn, error) {
	if !kind.Valid() {
		return models.Turn{}, ErrInvalidFeedback
	}
	return c.store.update(turnID, func(t *models.Turn) error {
		if t.Role != models.RoleAssistant {
			return ErrTurnNotFound
		}
		if t.Feedback == kind {
			t.Feedback = models.FeedbackNone
		} else {
			t.Feedback = kind
		}
		return nil
	})
}

// Copy puts text on the clipboard. Failures are logged and reported; the
// transcript is never touched.
func (c *Conversation) Copy(text string) error {
	if c.clipboard == nil {
		log.Warn().Msg("conversation: copy requested without a clipboard")
		return ErrNoClipboard
	}
	if err := c.clipboard.Write(text); err != nil {
		log.Warn().Err(err).Msg("conversation: clipboard write failed")
		return err
	}
	return nil
}

// Share uses the platform share collaborator when there is one and otherwise
// copies text and shows a confirmation. It never fails; errors are logged.
func (c *Conversation) Share(text string) (result ShareResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("conversation: share panicked")
			result = ShareFailed
		}
	}()

	if c.sharer != nil {
		if err := c.sharer.Share(ShareTitle, text); err != nil {
			log.Warn().Err(err).Msg("conversation: share failed")
			return ShareFailed
		}
		return ShareShared
	}

	if err := c.Copy(text); err != nil {
		return ShareFailed
	}
	if c.notifier != nil {
		if err := c.notifier.Notify(copyConfirmTitle, copyConfirmNotice); err != nil {
			log.Debug().Err(err).Msg("conversation: copy confirmation not shown")
		}
	}
	return ShareCopied
}
