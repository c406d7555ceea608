// Package compose renders the per-target complaint message for an issue.
//
// Templates use the placeholders {category}, {title}, {description},
// {location} and {reporter}. Substitution is a single literal pass: every
// occurrence of a placeholder is replaced, replacement text is never scanned
// again, and placeholders missing from a template are simply not rendered.
package compose

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kilianp07/civicdispatch/core/model"
)

// Placeholder tokens recognised in message templates.
const (
	PlaceholderCategory    = "{category}"
	PlaceholderTitle       = "{title}"
	PlaceholderDescription = "{description}"
	PlaceholderLocation    = "{location}"
	PlaceholderReporter    = "{reporter}"
)

// Message is the rendered report for one target.
type Message struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	// MailtoURL is the percent-escaped form handed to a mail client.
	MailtoURL string `json:"mailto_url"`
}

// Subject returns the subject line for an issue category.
func Subject(c model.IssueCategory) string {
	return "Civic Issue Report - " + c.Label()
}

// Compose renders target's template for req. The body is never truncated.
func Compose(req model.DispatchRequest, target model.DispatchTarget) Message {
	r := strings.NewReplacer(
		PlaceholderCategory, req.Category.Label(),
		PlaceholderTitle, req.Title,
		PlaceholderDescription, req.Description,
		PlaceholderLocation, req.Location.String(),
		PlaceholderReporter, req.ReporterLabel(),
	)
	msg := Message{
		Recipient: target.ContactEmail,
		Subject:   Subject(req.Category),
		Body:      r.Replace(target.MessageTemplate),
	}
	msg.MailtoURL = MailtoURL(msg.Recipient, msg.Subject, msg.Body)
	return msg
}

// MailtoURL builds a mailto link with RFC 3986 escaping (spaces become %20).
func MailtoURL(to, subject, body string) string {
	return fmt.Sprintf("mailto:%s?subject=%s&body=%s", url.PathEscape(to), escape(subject), escape(body))
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// PlainText renders the message for copying to a clipboard.
func (m Message) PlainText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\n", m.Recipient)
	fmt.Fprintf(&b, "Subject: %s\n\n", m.Subject)
	b.WriteString(m.Body)
	return b.String()
}
