// Package notify delivers moderation notifications when content is reported.
// Delivery failures are the caller's to log; a report is never rejected
// because its notification could not be sent.
package notify

import (
	"fmt"
	"log"
	"net/smtp"

	"anonqa/pkg/store"
)

// Notifier is told about newly submitted reports.
type Notifier interface {
	ReportSubmitted(r *store.Report) error
}

// LogNotifier writes report notifications to the process log. It is the
// default when no SMTP settings are configured.
type LogNotifier struct{}

func (LogNotifier) ReportSubmitted(r *store.Report) error {
	log.Printf("report submitted: type=%s item=%s reason=%s", r.ItemType, r.ItemID, r.Reason)
	return nil
}

// SMTPNotifier emails each report to a moderation address.
type SMTPNotifier struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	To       string
}

func (n *SMTPNotifier) ReportSubmitted(r *store.Report) error {
	body := fmt.Sprintf(
		"A new content report has been submitted:\r\n"+
			"\r\n"+
			"Type: %s\r\n"+
			"Item ID: %s\r\n"+
			"Reason: %s\r\n"+
			"Details: %s\r\n"+
			"Submitted: %s\r\n"+
			"\r\n"+
			"Please review this content for moderation.\r\n",
		r.ItemType, r.ItemID, r.Reason, orNone(r.Details), r.CreatedAt.Format("2006-01-02 15:04:05 UTC"),
	)
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Content report: %s\r\n\r\n%s",
		n.From, n.To, r.ItemType, body,
	)

	addr := n.Host + ":" + n.Port
	auth := smtp.PlainAuth("", n.Username, n.Password, n.Host)
	return smtp.SendMail(addr, auth, n.From, []string{n.To}, []byte(msg))
}

func orNone(s string) string {
	if s == "" {
		return "none provided"
	}
	return s
}
