package magi

import (
	"context"
	"regexp"
	"strings"
)

// Canned replies of the local responder.
const (
	ReplyAcknowledged = "[MAGI]: Acknowledged. Standing by for command."
	ReplyGratitude    = "[LOG]: Acknowledged. Standing by."
	ReplyOffline      = "[ERR]: Neural link offline. Running on local cache. Unable to process complex queries."

	defaultStackSummary = "[DATA]: Technical Stack:\n- Languages: Python, Java, SQL.\n- Frameworks: Next.js, Flask."
)

var (
	greetingPattern  = regexp.MustCompile(`\b(hi|hello|hey|salaam|namaste|hola|bonjour|start)\b`)
	gratitudePattern = regexp.MustCompile(`\b(thanks|thank|shukriya|arigato|gracias)\b`)
)

// greetingReplies maps a greeting word to the acknowledgement echoed in
// the same language. Order matters: the first word found in the text wins.
var greetingReplies = []struct {
	word  string
	reply string
}{
	{"salaam", "Wa alaikum assalam"},
	{"namaste", "Namaste"},
	{"hola", "Hola"},
	{"bonjour", "Bonjour"},
}

// LocalResponder answers from the profile with a fixed rule cascade.
// It needs no network and never fails, so it terminates every chain.
type LocalResponder struct {
	profiles ProfileSource
}

var _ Strategy = (*LocalResponder)(nil)

// NewLocalResponder creates a LocalResponder over the given profiles.
func NewLocalResponder(profiles ProfileSource) *LocalResponder {
	if profiles == nil {
		profiles = StaticProfile(DefaultProfile())
	}
	return &LocalResponder{profiles: profiles}
}

func (l *LocalResponder) Source() Source { return SourceLocal }

func (l *LocalResponder) Enabled() bool { return true }

func (l *LocalResponder) Name() string { return "local" }

func (l *LocalResponder) Attempt(_ context.Context, p Prompt) (Completion, error) {
	return Completion{Text: l.Respond(p.Query)}, nil
}

// Respond maps a query to a canned reply. The first matching rule wins.
func (l *LocalResponder) Respond(q Query) string {
	text := strings.ToLower(q.Text)
	profile := l.profiles.Profile()

	switch {
	case greetingPattern.MatchString(text):
		if !q.IsFirstTurn {
			return ReplyAcknowledged
		}
		return "[MAGI]: System online. " + greetingAck(text) + ". " + Intro(profile) + " How can I assist you?"

	case gratitudePattern.MatchString(text):
		return ReplyGratitude

	case strings.Contains(text, "skill") || strings.Contains(text, "stack"):
		return stackSummary(profile)

	case strings.Contains(text, "project"):
		if proj, ok := profile.FirstProject(); ok {
			return "[DATA]: Key Entry: " + proj.Name + "."
		}
		return ReplyOffline

	case strings.Contains(text, "contact") || strings.Contains(text, "email"):
		if profile != nil && profile.Contact.Email != "" {
			return "[DATA]: Secure Uplink: " + profile.Contact.Email
		}
		return ReplyOffline
	}

	return ReplyOffline
}

func greetingAck(text string) string {
	for _, g := range greetingReplies {
		if strings.Contains(text, g.word) {
			return g.reply
		}
	}
	return "Greetings"
}

func stackSummary(p *Profile) string {
	if p == nil {
		return defaultStackSummary
	}
	languages := skillNames(p.SkillsCategories["Languages"])
	frameworks := append(skillNames(p.SkillsCategories["Frontend"]), skillNames(p.SkillsCategories["Backend"])...)
	if len(languages) == 0 && len(frameworks) == 0 {
		return defaultStackSummary
	}

	var b strings.Builder
	b.WriteString("[DATA]: Technical Stack:")
	if len(languages) > 0 {
		b.WriteString("\n- Languages: " + strings.Join(languages, ", ") + ".")
	}
	if len(frameworks) > 0 {
		b.WriteString("\n- Frameworks: " + strings.Join(frameworks, ", ") + ".")
	}
	return b.String()
}

func skillNames(skills []Skill) []string {
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		if s.Name != "" {
			names = append(names, s.Name)
		}
	}
	return names
}
