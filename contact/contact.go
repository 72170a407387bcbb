// Package contact validates, sanitizes and composes contact form
// submissions.
package contact

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/magiconsole/magi"
)

// SubjectPrefix starts the subject line of every relayed message.
const SubjectPrefix = "Portfolio Contact: "

// Submission is the contact form payload. Trap is a honeypot field that
// is hidden from humans.
type Submission struct {
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"min=3,max=200"`
	Message string `json:"message" validate:"min=10,max=1000"`
	Trap    string `json:"trap,omitempty"`
}

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// IsBot reports whether the honeypot was filled.
func (s Submission) IsBot() bool {
	return s.Trap != ""
}

// Validate returns one FieldError per invalid field, in field order.
// Lengths are counted in characters.
func (s Submission) Validate() []FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Field() + "." + fe.Tag() {
	case "email.required":
		return "Required"
	case "email.email":
		return "Invalid email address"
	case "subject.min":
		return "Subject must be at least 3 characters"
	case "subject.max":
		return "Subject too long"
	case "message.min":
		return "Message must be at least 10 characters"
	case "message.max":
		return "Message too long"
	}
	return fmt.Sprintf("Invalid %s", fe.Field())
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// EscapeHTML escapes & < > " ' and /.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

var angleStripper = strings.NewReplacer("<", "", ">", "")

// Sanitized holds submission fields that are safe to embed in HTML.
type Sanitized struct {
	Email   string
	Subject string
	Message string
}

// Sanitize trims and escapes email and message and strips angle
// brackets from the subject.
func Sanitize(s Submission) Sanitized {
	return Sanitized{
		Email:   EscapeHTML(strings.TrimSpace(s.Email)),
		Subject: angleStripper.Replace(s.Subject),
		Message: EscapeHTML(strings.TrimSpace(s.Message)),
	}
}

const htmlBody = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #1e293b;">New Contact Form Submission</h2>
  <div style="background: #f1f5f9; padding: 20px; border-radius: 8px; margin: 20px 0;">
    <p><strong>From:</strong> %s</p>
    <p><strong>Subject:</strong> %s</p>
  </div>
  <div style="background: #ffffff; padding: 20px; border: 1px solid #e2e8f0; border-radius: 8px;">
    <h3 style="color: #475569; margin-top: 0;">Message:</h3>
    <p style="color: #334155; line-height: 1.6; white-space: pre-wrap;">%s</p>
  </div>
  <p style="color: #64748b; font-size: 12px; margin-top: 20px;">
    Sent from your portfolio contact form
  </p>
</div>`

// Compose builds the relayed message. Replies go to the visitor.
func Compose(s Sanitized, from string, to ...string) magi.Email {
	return magi.Email{
		From:    from,
		To:      to,
		ReplyTo: s.Email,
		Subject: SubjectPrefix + s.Subject,
		Text:    fmt.Sprintf("From: %s\n\nSubject: %s\n\nMessage:\n%s", s.Email, s.Subject, s.Message),
		HTML:    fmt.Sprintf(htmlBody, s.Email, s.Subject, s.Message),
	}
}
