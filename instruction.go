package magi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PersonaName is the name the console introduces itself with.
const PersonaName = "MAGI_SYSTEM"

// Intro returns the one-time self-introduction sentence.
func Intro(p *Profile) string {
	owner := "the site owner"
	if p != nil && p.User.Name != "" {
		owner = p.User.Name
	}
	return fmt.Sprintf("I am %s, an interactive portfolio navigator for %s's domain.", PersonaName, owner)
}

// BuildInstruction assembles the system instruction sent to generative
// providers for one turn.
func BuildInstruction(p *Profile, isFirstTurn bool) string {
	snapshot, err := json.Marshal(p)
	if err != nil {
		snapshot = []byte("{}")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "IDENTITY: You are %s\n\n", strings.TrimPrefix(Intro(p), "I am "))
	fmt.Fprintf(&b, "CONTEXT: %s\n\n", snapshot)
	b.WriteString("PROTOCOL:\n")
	b.WriteString("1. Tone: Robotic, Concise, Polite. No All-Caps.\n")
	b.WriteString("2. Formatting: Use prefixes [MAGI], [LOG], [DATA]. Use Newlines.\n")
	b.WriteString("3. Language: Mirror user's language for greetings.\n")
	owner := "the site owner"
	if p != nil && p.User.Name != "" {
		owner = p.User.Name
	}
	fmt.Fprintf(&b, "4. Identity: User is a VISITOR. %s is the CREATOR.\n\n", owner)

	start := "NO"
	if isFirstTurn {
		start = "YES"
	}
	b.WriteString("CURRENT CONTEXT:\n")
	fmt.Fprintf(&b, "- Is this the start of the conversation? %s\n\n", start)

	b.WriteString("GREETING RULES:\n")
	if isFirstTurn {
		fmt.Fprintf(&b, "- You MUST introduce yourself (%q).\n", Intro(p))
	} else {
		b.WriteString("- Do NOT introduce yourself. Just acknowledge the greeting briefly.\n")
	}
	return b.String()
}
