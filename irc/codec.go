// Package irc implements the small slice of the Twitch IRC line grammar the
// bot needs: login handshake signals, server keepalive pings, and tagged or
// untagged PRIVMSG lines. Anything else is surfaced as Unrecognized so the
// caller can log it without treating it as an error.
package irc

import (
	"fmt"
	"regexp"
	"strings"
)

// LineKind discriminates the variants returned by ParseLine.
type LineKind int

const (
	LineBlank LineKind = iota
	LinePing
	LineLoginFailed
	LineLoginWelcome
	LineText
	LineUnrecognized
)

func (k LineKind) String() string {
	switch k {
	case LineBlank:
		return "blank"
	case LinePing:
		return "ping"
	case LineLoginFailed:
		return "login_failed"
	case LineLoginWelcome:
		return "login_welcome"
	case LineText:
		return "text"
	default:
		return "unrecognized"
	}
}

// Line is one parsed logical IRC line.
//
// Kind selects which fields are meaningful: PingPayload for LinePing;
// Tags/Username/Channel/Message for LineText; Raw is always set.
type Line struct {
	Kind        LineKind
	PingPayload string
	Tags        string
	Username    string
	Channel     string
	Message     string
	Raw         string
}

const (
	loginFailedLine    = ":tmi.twitch.tv NOTICE * :Login unsuccessful"
	loginWelcomeSuffix = ":Welcome, GLHF!"
)

var textMessageRegex = regexp.MustCompile(
	`^(?:@(?P<tags>.+?) )?:(?P<username>.+?)!.+?@.+?\.tmi\.twitch\.tv ` +
		`PRIVMSG #(?P<channel>.+?) :(?P<message>.+)$`,
)

// ParseLine classifies a single logical line (no trailing CRLF). It never
// fails: lines that match nothing come back as LineUnrecognized.
func ParseLine(line string) Line {
	if strings.TrimSpace(line) == "" {
		return Line{Kind: LineBlank, Raw: line}
	}
	if line == loginFailedLine {
		return Line{Kind: LineLoginFailed, Raw: line}
	}
	if strings.HasSuffix(line, loginWelcomeSuffix) {
		return Line{Kind: LineLoginWelcome, Raw: line}
	}
	if payload, ok := strings.CutPrefix(line, "PING "); ok {
		return Line{Kind: LinePing, PingPayload: payload, Raw: line}
	}
	if m := textMessageRegex.FindStringSubmatch(line); m != nil {
		return Line{
			Kind:     LineText,
			Tags:     m[textMessageRegex.SubexpIndex("tags")],
			Username: m[textMessageRegex.SubexpIndex("username")],
			Channel:  m[textMessageRegex.SubexpIndex("channel")],
			Message:  m[textMessageRegex.SubexpIndex("message")],
			Raw:      line,
		}
	}
	return Line{Kind: LineUnrecognized, Raw: line}
}

// SplitLines breaks a raw socket read into logical lines. Reads may carry
// several CRLF-terminated lines concatenated; empty segments are dropped.
func SplitLines(raw string) []string {
	parts := strings.Split(raw, "\r\n")
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// Outgoing control frames. Twitch expects these verbatim; the connector
// writes them during the handshake and steady state.

func PassFrame(accessToken string) string { return "PASS oauth:" + accessToken }

func NickFrame(channelName string) string { return "NICK " + channelName }

func JoinFrame(channelName string) string { return "JOIN #" + channelName }

// CapReqFrame requests message tags so chat lines carry mod/sub/vip state.
func CapReqFrame() string { return "CAP REQ :twitch.tv/tags" }

func PongFrame(payload string) string { return "PONG " + payload }

func PrivmsgFrame(channelName, text string) string {
	return fmt.Sprintf("PRIVMSG #%s :%s", channelName, text)
}
