package contact_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magiconsole/magi/contact"
)

func valid() contact.Submission {
	return contact.Submission{
		Email:   "visitor@example.com",
		Subject: "Hello there",
		Message: "I would like to talk about a project.",
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.Empty(t, valid().Validate())
}

func TestValidate_ShortMessage(t *testing.T) {
	s := valid()
	s.Message = "short"

	errs := s.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "message", errs[0].Field)
	assert.Equal(t, "Message must be at least 10 characters", errs[0].Message)
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*contact.Submission)
		field   string
		message string
	}{
		{"bad email", func(s *contact.Submission) { s.Email = "not-an-email" }, "email", "Invalid email address"},
		{"missing email", func(s *contact.Submission) { s.Email = "" }, "email", "Required"},
		{"short subject", func(s *contact.Submission) { s.Subject = "hi" }, "subject", "Subject must be at least 3 characters"},
		{"long subject", func(s *contact.Submission) { s.Subject = strings.Repeat("a", 201) }, "subject", "Subject too long"},
		{"long message", func(s *contact.Submission) { s.Message = strings.Repeat("a", 1001) }, "message", "Message too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			errs := s.Validate()
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Equal(t, tt.message, errs[0].Message)
		})
	}
}

func TestValidate_Boundaries(t *testing.T) {
	s := valid()
	s.Subject = strings.Repeat("a", 3)
	s.Message = strings.Repeat("b", 10)
	assert.Empty(t, s.Validate())

	s.Subject = strings.Repeat("a", 200)
	s.Message = strings.Repeat("b", 1000)
	assert.Empty(t, s.Validate())
}

func TestValidate_CountsCharacters(t *testing.T) {
	s := valid()
	s.Subject = "äöü"
	assert.Empty(t, s.Validate())
}

func TestValidate_MultipleErrorsInFieldOrder(t *testing.T) {
	s := contact.Submission{Email: "x", Subject: "a", Message: "b"}
	errs := s.Validate()
	require.Len(t, errs, 3)
	assert.Equal(t, "email", errs[0].Field)
	assert.Equal(t, "subject", errs[1].Field)
	assert.Equal(t, "message", errs[2].Field)
}

func TestIsBot(t *testing.T) {
	s := valid()
	assert.False(t, s.IsBot())
	s.Trap = "http://spam.example"
	assert.True(t, s.IsBot())
}

func TestEscapeHTML(t *testing.T) {
	assert.Equal(t, "&lt;script&gt;alert(&quot;x&quot;)&lt;&#x2F;script&gt;", contact.EscapeHTML(`<script>alert("x")</script>`))
	assert.Equal(t, "Tom &amp; Jerry&#x27;s", contact.EscapeHTML("Tom & Jerry's"))
	assert.Equal(t, "plain", contact.EscapeHTML("plain"))
}

func TestSanitize(t *testing.T) {
	s := contact.Sanitize(contact.Submission{
		Email:   "  a@b.co  ",
		Subject: "<b>Hi</b> there",
		Message: "  <script>x</script>  ",
	})

	assert.Equal(t, "a@b.co", s.Email)
	assert.Equal(t, "bHi/b there", s.Subject)
	assert.Equal(t, "&lt;script&gt;x&lt;&#x2F;script&gt;", s.Message)
}

func TestCompose(t *testing.T) {
	s := contact.Sanitize(contact.Submission{
		Email:   "visitor@example.com",
		Subject: "Hello",
		Message: "Check <script>this</script>",
	})
	e := contact.Compose(s, "Portfolio <onboarding@resend.dev>", "owner@example.com")

	assert.Equal(t, "Portfolio <onboarding@resend.dev>", e.From)
	assert.Equal(t, []string{"owner@example.com"}, e.To)
	assert.Equal(t, "visitor@example.com", e.ReplyTo)
	assert.Equal(t, "Portfolio Contact: Hello", e.Subject)
	assert.Contains(t, e.Text, "From: visitor@example.com")
	assert.Contains(t, e.Text, "&lt;script&gt;this")
	assert.Contains(t, e.HTML, "&lt;script&gt;this&lt;&#x2F;script&gt;")
	assert.NotContains(t, e.HTML, "<script>")
}
