package irc

import "strings"

// Chatter identifies the author of a single chat line. A fresh value is built
// per message; there is no cross-message identity caching.
type Chatter struct {
	Username   string
	Colour     string
	Moderator  bool
	Subscriber bool
	VIP        bool
}

// ParseChatter builds a Chatter from a username and a semicolon-delimited
// `key=value` tag block. Keys with no trailing content count as absent.
// The capability flags are true only when the tag value is literally "1".
func ParseChatter(username, tags string) Chatter {
	c := Chatter{Username: username}
	if tags == "" {
		return c
	}
	for _, pair := range strings.Split(tags, ";") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		switch key {
		case "color":
			c.Colour = value
		case "mod":
			c.Moderator = value == "1"
		case "subscriber":
			c.Subscriber = value == "1"
		case "vip":
			c.VIP = value == "1"
		}
	}
	return c
}
