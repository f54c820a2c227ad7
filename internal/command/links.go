package command

import (
	"net/url"
	"strconv"
	"strings"
)

// BotIDPlaceholder is replaced with the numeric bot id in stored URLs.
const BotIDPlaceholder = "BOT_ID"

// DefaultPathSegment is the path prefix of mini-app pages.
const DefaultPathSegment = "/bot/"

// LinkBuilder renders stored links into the URLs sent to end-users.
type LinkBuilder struct {
	publicURL   string
	pathSegment string
}

// NewLinkBuilder creates a builder for mini-app pages served under publicURL.
func NewLinkBuilder(publicURL, pathSegment string) LinkBuilder {
	if pathSegment == "" {
		pathSegment = DefaultPathSegment
	}

	return LinkBuilder{
		publicURL:   strings.TrimRight(publicURL, "/"),
		pathSegment: pathSegment,
	}
}

// Expand substitutes the bot id placeholder.
func (b LinkBuilder) Expand(link string, botID int64) string {
	return strings.ReplaceAll(link, BotIDPlaceholder, strconv.FormatInt(botID, 10))
}

// IsMiniApp reports whether link points at one of our mini-app pages.
func (b LinkBuilder) IsMiniApp(link string) bool {
	return strings.Contains(link, b.pathSegment)
}

// MiniAppURL makes link absolute against the public URL and tags it with the end-user id.
func (b LinkBuilder) MiniAppURL(link string, userID int64) string {
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		if !strings.HasPrefix(link, "/") {
			link = "/" + link
		}
		link = b.publicURL + link
	}

	u, err := url.Parse(link)
	if err != nil {
		return link + "?user_id=" + strconv.FormatInt(userID, 10)
	}

	q := u.Query()
	q.Set("user_id", strconv.FormatInt(userID, 10))
	u.RawQuery = q.Encode()
	return u.String()
}

// WebAppURL is the built-in mini-app page of a bot.
func (b LinkBuilder) WebAppURL(botID, userID int64) string {
	path := b.pathSegment + strconv.FormatInt(botID, 10) + "/webapp"
	return b.MiniAppURL(path, userID)
}

// WebhookURL is where Telegram delivers updates for a bot.
func (b LinkBuilder) WebhookURL(botID int64) string {
	return b.publicURL + "/webhook/" + strconv.FormatInt(botID, 10)
}
