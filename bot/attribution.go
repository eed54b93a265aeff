package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/microcosm-cc/bluemonday"
)

// markupStripper removes any markup from user-controlled display text before
// it is embedded in a ParseMode=HTML message. StrictPolicy strips every tag
// and entity-escapes what remains.
var markupStripper = bluemonday.StrictPolicy()

// formatReplacement builds the HTML message that replaces the original:
// an attribution line naming the sender (and forward origin, if any),
// followed by the rewritten text.
func formatReplacement(msg *models.Message, rewritten string) string {
	var sb strings.Builder
	sb.WriteString("Sent by ")
	sb.WriteString(displayName(msg.From))
	sb.WriteString(forwardAttribution(msg))
	sb.WriteString(":\n")
	sb.WriteString(html.EscapeString(rewritten))
	return sb.String()
}

// displayName renders a user as an HTML fragment: "@username" when one is
// set, otherwise the full name as a tg:// mention link.
func displayName(user *models.User) string {
	if user == nil {
		return "Unknown"
	}
	if user.Username != "" {
		return "@" + markupStripper.Sanitize(user.Username)
	}

	name := markupStripper.Sanitize(user.FirstName)
	if user.LastName != "" {
		name += " " + markupStripper.Sanitize(user.LastName)
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, user.ID, name)
}

// forwardAttribution renders the ", forwarded from …" fragment for forwarded
// messages, or "" for ordinary ones.
func forwardAttribution(msg *models.Message) string {
	origin := msg.ForwardOrigin
	if origin == nil {
		return ""
	}

	switch origin.Type {
	case models.MessageOriginTypeUser:
		return ", forwarded from " + displayName(&origin.MessageOriginUser.SenderUser)

	case models.MessageOriginTypeHiddenUser:
		return ", forwarded from " + markupStripper.Sanitize(origin.MessageOriginHiddenUser.SenderUserName)

	case models.MessageOriginTypeChannel:
		ch := origin.MessageOriginChannel
		title := markupStripper.Sanitize(ch.Chat.Title)
		if title == "" {
			title = "unknown"
		}

		var link string
		if ch.Chat.Username != "" {
			link = fmt.Sprintf("https://t.me/%s/%d", ch.Chat.Username, ch.MessageID)
		} else {
			// Private channels have no username; t.me/c/ links use the chat
			// ID without the -100 prefix.
			link = fmt.Sprintf("https://t.me/c/%d/%d", -(ch.Chat.ID + 1000000000000), ch.MessageID)
		}
		return fmt.Sprintf(`, forwarded from channel <a href="%s">%s</a>`, link, title)

	case models.MessageOriginTypeChat:
		title := markupStripper.Sanitize(origin.MessageOriginChat.SenderChat.Title)
		if title == "" {
			title = "unknown"
		}
		return ", forwarded from " + title
	}

	return ""
}
