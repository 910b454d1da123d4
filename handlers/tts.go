package handlers

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/mirrelia/pointsbot/dispatch"
	"github.com/mirrelia/pointsbot/irc"
	"github.com/mirrelia/pointsbot/settings"
)

const speechURL = "https://api.streamelements.com/kappa/v2/speech"

// Voice is a synthesis voice with its playback-rate correction.
type Voice struct {
	Name string
	Rate string
}

var allVoices = map[string]Voice{
	"matthew":  {"Matthew", "1"},
	"brian":    {"Brian", "1.1"},
	"amy":      {"Amy", "1"},
	"emma":     {"Emma", "1"},
	"geraint":  {"Geraint", "1.1"},
	"russell":  {"Russell", "1"},
	"nicole":   {"Nicole", "1"},
	"joey":     {"Joey", "1.2"},
	"justin":   {"Justin", "1"},
	"joanna":   {"Joanna", "1"},
	"kendra":   {"Kendra", "1"},
	"kimberly": {"Kimberly", "1.2"},
	"salli":    {"Salli", "1.1"},
}

// voiceKeys is sorted so the deterministic per-user pick is stable across
// process restarts.
var voiceKeys = func() []string {
	keys := make([]string, 0, len(allVoices))
	for k := range allVoices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}()

var pitchSteps = []float64{-1, -0.8, -0.6, -0.4, -0.2, 0, 0.2, 0.4, 0.6, 0.8}

func userHash(username, salt string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(username) + salt))
	return h.Sum64()
}

// VoiceFor returns the voice key for a username: the override when one is
// configured, otherwise a stable hash-based pick. The same user always gets
// the same voice.
func VoiceFor(cfg settings.TTSSettings, username string) string {
	if v, ok := cfg.VoiceOverrides[strings.ToLower(username)]; ok {
		if _, known := allVoices[v]; known {
			return v
		}
	}
	return voiceKeys[userHash(username, "v")%uint64(len(voiceKeys))]
}

// PitchFor returns the pitch shift for a username, override or stable pick.
func PitchFor(cfg settings.TTSSettings, username string) float64 {
	if p, ok := cfg.PitchOverrides[strings.ToLower(username)]; ok {
		return p
	}
	return pitchSteps[userHash(username, "p")%uint64(len(pitchSteps))]
}

// ttsPipeline holds the text transforms compiled once at registration.
type ttsPipeline struct {
	cfg       settings.TTSSettings
	blacklist map[string]bool
	wordRe    *regexp.Regexp
	words     map[string]string
	regexSubs []regexSub
}

type regexSub struct {
	re  *regexp.Regexp
	out string
}

func newTTSPipeline(cfg settings.TTSSettings) (*ttsPipeline, error) {
	p := &ttsPipeline{cfg: cfg, blacklist: map[string]bool{}, words: map[string]string{}}
	for _, u := range cfg.Blacklist {
		p.blacklist[strings.ToLower(u)] = true
	}
	if len(cfg.WordReplacements) > 0 {
		keys := make([]string, 0, len(cfg.WordReplacements))
		for k, v := range cfg.WordReplacements {
			lk := strings.ToLower(k)
			p.words[lk] = v
			keys = append(keys, regexp.QuoteMeta(lk))
		}
		sort.Strings(keys)
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(keys, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("word replacements: %w", err)
		}
		p.wordRe = re
	}
	patterns := make([]string, 0, len(cfg.RegexReplacements))
	for pat := range cfg.RegexReplacements {
		patterns = append(patterns, pat)
	}
	sort.Strings(patterns)
	for _, pat := range patterns {
		re, err := regexp.Compile("(?im)" + pat)
		if err != nil {
			return nil, fmt.Errorf("regex replacement %q: %w", pat, err)
		}
		p.regexSubs = append(p.regexSubs, regexSub{re: re, out: cfg.RegexReplacements[pat]})
	}
	return p, nil
}

// transform applies reply stripping, word and regex replacements, and the
// emoji filter.
func (p *ttsPipeline) transform(text string) string {
	if p.cfg.IgnoreReplies != nil && *p.cfg.IgnoreReplies && strings.HasPrefix(text, "@") {
		if _, rest, ok := strings.Cut(text, " "); ok {
			text = rest
		}
	}
	if p.wordRe != nil {
		text = p.wordRe.ReplaceAllStringFunc(text, func(m string) string {
			if out, ok := p.words[strings.ToLower(m)]; ok {
				return out
			}
			return m
		})
	}
	for _, s := range p.regexSubs {
		text = s.re.ReplaceAllString(text, s.out)
	}
	if p.cfg.IgnoreEmojis != nil && *p.cfg.IgnoreEmojis {
		text = stripEmoji(text)
	}
	return strings.TrimSpace(text)
}

// stripEmoji replaces emoji and pictographic runes with spaces so the
// synthesizer is never handed "face with tears of joy" twelve times.
func stripEmoji(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 0x1F000 && r <= 0x1FAFF: // symbols, emoticons, pictographs
			return ' '
		case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
			return ' '
		case r == 0xFE0F || r == 0x200D: // variation selector, ZWJ
			return ' '
		default:
			return r
		}
	}, s)
}

// NewTTS builds the chat handler that reads messages aloud. Messages that
// are commands, links, over the configured limits, or from blacklisted users
// are skipped silently.
func NewTTS(cfg settings.TTSSettings, player Player) (dispatch.ChatHandler, error) {
	pipe, err := newTTSPipeline(cfg)
	if err != nil {
		return nil, err
	}
	log := slog.Default().With(slog.String("component", "tts"))
	return func(ctx context.Context, chatter irc.Chatter, message string) error {
		if pipe.blacklist[strings.ToLower(chatter.Username)] {
			log.Debug("skipping blacklisted user", slog.String("username", chatter.Username))
			return nil
		}
		if strings.HasPrefix(message, "!") || strings.HasPrefix(message, "http") {
			return nil
		}

		text := pipe.transform(message)
		if text == "" {
			return nil
		}
		words := strings.Fields(text)
		if len(words) > cfg.Limits.MaxWordCount {
			log.Info("hit max word count", slog.String("username", chatter.Username))
			return nil
		}
		for _, w := range words {
			if len(w) >= cfg.Limits.MaxWordLength {
				log.Info("hit max word length", slog.String("username", chatter.Username))
				return nil
			}
		}

		key := VoiceFor(cfg, chatter.Username)
		voice := allVoices[key]
		q := url.Values{}
		q.Set("voice", voice.Name)
		q.Set("text", text)

		log.Info("running tts",
			slog.String("username", chatter.Username),
			slog.String("voice", voice.Name))
		return player.Play(ctx, speechURL+"?"+q.Encode(), PlayOptions{
			Rate:       voice.Rate,
			PitchShift: PitchFor(cfg, chatter.Username),
			Output:     cfg.SoundOutput,
		})
	}, nil
}
