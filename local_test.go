package magi_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magiconsole/magi"
)

func TestLocalResponder_Rules(t *testing.T) {
	l := magi.NewLocalResponder(nil)

	tests := []struct {
		name  string
		query magi.Query
		want  string
	}{
		{
			name:  "first greeting introduces",
			query: magi.Query{Text: "Hi there", IsFirstTurn: true},
			want: "[MAGI]: System online. Greetings. I am MAGI_SYSTEM, an interactive portfolio navigator " +
				"for Sam Rivera's domain. How can I assist you?",
		},
		{
			name:  "later greeting only acknowledges",
			query: magi.Query{Text: "hello", IsFirstTurn: false},
			want:  magi.ReplyAcknowledged,
		},
		{
			name:  "salaam is answered in kind",
			query: magi.Query{Text: "Salaam!", IsFirstTurn: true},
			want: "[MAGI]: System online. Wa alaikum assalam. I am MAGI_SYSTEM, an interactive portfolio " +
				"navigator for Sam Rivera's domain. How can I assist you?",
		},
		{
			name:  "gratitude",
			query: magi.Query{Text: "Thanks a lot"},
			want:  magi.ReplyGratitude,
		},
		{
			name:  "greeting wins over gratitude",
			query: magi.Query{Text: "hey thanks"},
			want:  magi.ReplyAcknowledged,
		},
		{
			name:  "stack",
			query: magi.Query{Text: "What SKILLS do you have?"},
			want:  "[DATA]: Technical Stack:\n- Languages: Python, Java, SQL.\n- Frameworks: Next.js, Flask.",
		},
		{
			name:  "project",
			query: magi.Query{Text: "show me a project"},
			want:  "[DATA]: Key Entry: Portfolio API Console.",
		},
		{
			name:  "contact",
			query: magi.Query{Text: "what's your email"},
			want:  "[DATA]: Secure Uplink: hello@samrivera.dev",
		},
		{
			name:  "word boundaries",
			query: magi.Query{Text: "this is a shipment"},
			want:  magi.ReplyOffline,
		},
		{
			name:  "anything else",
			query: magi.Query{Text: "explain quantum gravity"},
			want:  magi.ReplyOffline,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Respond(tt.query))
		})
	}
}

func TestLocalResponder_SparseProfile(t *testing.T) {
	p, err := magi.ParseProfile([]byte(`{"user": {"name": "Jo"}}`))
	require.NoError(t, err)
	l := magi.NewLocalResponder(magi.StaticProfile(p))

	assert.Equal(t, magi.ReplyOffline, l.Respond(magi.Query{Text: "projects?"}))
	assert.Equal(t, magi.ReplyOffline, l.Respond(magi.Query{Text: "contact"}))
	assert.Equal(t,
		"[DATA]: Technical Stack:\n- Languages: Python, Java, SQL.\n- Frameworks: Next.js, Flask.",
		l.Respond(magi.Query{Text: "stack"}))
}

func TestLocalResponder_IsAlwaysAvailable(t *testing.T) {
	l := magi.NewLocalResponder(nil)
	assert.True(t, l.Enabled())
	assert.Equal(t, magi.SourceLocal, l.Source())

	c, err := l.Attempt(context.Background(), magi.Prompt{Query: magi.Query{Text: "thanks"}})
	require.NoError(t, err)
	assert.Equal(t, magi.ReplyGratitude, c.Text)
}

func TestInstruction_FirstTurn(t *testing.T) {
	p := magi.DefaultProfile()

	first := magi.BuildInstruction(p, true)
	assert.Contains(t, first, "IDENTITY: You are MAGI_SYSTEM")
	assert.Contains(t, first, "start of the conversation? YES")
	assert.Contains(t, first, "You MUST introduce yourself")
	assert.Contains(t, first, `"name":"Sam Rivera"`)

	later := magi.BuildInstruction(p, false)
	assert.Contains(t, later, "start of the conversation? NO")
	assert.Contains(t, later, "Do NOT introduce yourself")
}

func TestIntro_WithoutProfile(t *testing.T) {
	assert.Equal(t,
		"I am MAGI_SYSTEM, an interactive portfolio navigator for the site owner's domain.",
		magi.Intro(nil))
}

func TestParseProfile_RequiresName(t *testing.T) {
	_, err := magi.ParseProfile([]byte(`{"user": {}}`))
	assert.ErrorContains(t, err, "user.name is required")

	_, err = magi.ParseProfile([]byte(`not json`))
	assert.Error(t, err)
}
