package admin

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/hamedydev/digitalme/internal/relay"
)

const (
	unauthorizedReply = "غير مخول."
	startedReply      = "✅ تم تفعيل البوت (سيتم الرد على الرسائل)."
	stoppedReply      = "⛔ تم إيقاف البوت (لم يعد يرد على الرسائل)."
	statusOnReply     = "حالة البوت الآن: ✅ مفعل"
	statusOffReply    = "حالة البوت الآن: ⛔ متوقف"
	exportingReply    = "⏳ جارٍ تجهيز ملف البيانات..."
	exportDoneReply   = "✅ تم إرسال ملف البيانات."
	exportFailedReply = "حدث خطأ أثناء تجهيز ملف البيانات."

	exportFilename = "users.json"
)

// commandResult is what a command wants sent back: a text reply, and
// optionally a document followed by a confirmation message.
type commandResult struct {
	reply    string
	document []byte
	filename string
	followUp string
}

// executeCommand parses and runs a single operator command. Unknown text
// and messages from anyone but the owner produce the appropriate replies
// here so the transport layer stays thin.
func (b *Bot) executeCommand(text string, actorID int64) commandResult {
	if len(text) == 0 || text[0] != '/' {
		return commandResult{}
	}

	// Strip arguments and the @botname suffix.
	cmd := strings.SplitN(text, " ", 2)[0]
	cmd = strings.SplitN(cmd, "@", 2)[0]
	cmd = strings.ToLower(cmd)

	if actorID != b.ownerID {
		slog.Warn("telegram command from non-owner rejected", "user_id", actorID, "command", cmd)
		return commandResult{reply: unauthorizedReply}
	}

	switch cmd {
	case "/startbot":
		if err := b.switchbrd.Activate(actorID); err != nil {
			return rejectIfUnauthorized(err)
		}
		slog.Info("relay activated by owner")
		return commandResult{reply: startedReply}

	case "/stopbot":
		if err := b.switchbrd.Deactivate(actorID); err != nil {
			return rejectIfUnauthorized(err)
		}
		slog.Info("relay deactivated by owner")
		return commandResult{reply: stoppedReply}

	case "/status":
		if b.switchbrd.Enabled() {
			return commandResult{reply: statusOnReply}
		}
		return commandResult{reply: statusOffReply}

	case "/exportdb":
		data, err := b.store.ExportSnapshot()
		if err != nil {
			slog.Warn("session export failed", "error", err)
			return commandResult{reply: exportFailedReply}
		}
		return commandResult{
			reply:    exportingReply,
			document: data,
			filename: exportFilename,
			followUp: exportDoneReply,
		}
	}

	return commandResult{}
}

func rejectIfUnauthorized(err error) commandResult {
	if errors.Is(err, relay.ErrUnauthorized) {
		return commandResult{reply: unauthorizedReply}
	}
	return commandResult{}
}
