package notify

import (
	"context"
	"fmt"
	"log"
)

// Message is one outbound mail. It doubles as the queue payload for
// asynchronous student notifications.
type Message struct {
	To             string `json:"to"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	AttachmentPath string `json:"attachment_path,omitempty"`
}

// Mailer delivers messages. Delivery failure is logged by callers and never
// rolls back the ledger mutation that preceded it.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// RegistrationMail is sent to a student after successful registration.
func RegistrationMail(to, subjectName, studentName string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Registered for %s Attendance", subjectName),
		Body:    fmt.Sprintf("Hello %s,\n\nYou have been registered for %s attendance.", studentName, subjectName),
	}
}

// AttendanceMail is sent to a student on the first mark of the day.
func AttendanceMail(to, subjectName, studentName string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Attendance Marked for %s", subjectName),
		Body:    fmt.Sprintf("Dear %s,\n\nYour attendance for %s has been marked.", studentName, subjectName),
	}
}

// ReportMail carries the daily attendance sheet to the professor.
func ReportMail(to, subjectName, day, attachmentPath string) Message {
	return Message{
		To:             to,
		Subject:        fmt.Sprintf("Daily Attendance Sheet: %s (%s)", subjectName, day),
		Body:           fmt.Sprintf("Please find attached the attendance sheet for %s on %s.", subjectName, day),
		AttachmentPath: attachmentPath,
	}
}

// LogMailer logs instead of sending; for dev setups without SMTP credentials.
type LogMailer struct{}

// Send logs the message.
func (LogMailer) Send(_ context.Context, msg Message) error {
	log.Printf("mail (log only) to=%s subject=%q attachment=%q", msg.To, msg.Subject, msg.AttachmentPath)
	return nil
}
