package mirror

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// HTMLLink renders the default clickable back-reference to a source message,
// in Telegram HTML markup. Channel IDs carry a -100 prefix internally that
// t.me/c/ links do not use.
func HTMLLink(channelTitle string, channelID int64, messageID int) string {
	clean := strings.TrimPrefix(strconv.FormatInt(channelID, 10), "-100")
	return fmt.Sprintf(`<a href="https://t.me/c/%s/%d">➡️ <b>%s</b></a>`,
		clean, messageID, html.EscapeString(channelTitle))
}
