package dispatch

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"truck_notify_bot/internal/logging"
)

const adminPrefix = "⚠️ [ADMIN NOTICE]\n"

// Notifier forwards operational notices to the admin chat. Delivery failures
// are logged and never surface to the user flow.
type Notifier struct {
	sender Sender
	chatID int64
	logger *logrus.Entry
}

// NewNotifier constructs a Notifier; chatID 0 keeps notices in the log only.
func NewNotifier(sender Sender, chatID int64, logger *logrus.Entry) *Notifier {
	if logger == nil {
		logger = logging.Logger()
	}
	return &Notifier{sender: sender, chatID: chatID, logger: logger}
}

// Notify sends text to the admin chat.
func (n *Notifier) Notify(ctx context.Context, text string) {
	if n == nil {
		return
	}

	entry := n.logger.WithFields(logging.Fields{
		"event":  "admin_notice",
		"notice": firstLine(text),
	})

	if n.sender == nil || n.chatID == 0 {
		entry.Warn("admin chat not configured; notice logged only")
		return
	}

	if err := n.sender.SendText(ctx, n.chatID, adminPrefix+text); err != nil {
		entry.WithError(err).Error("failed to deliver admin notice")
		return
	}

	entry.Debug("admin notice delivered")
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
