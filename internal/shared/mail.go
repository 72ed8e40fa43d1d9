package shared

import "context"

// MailMessage is an outbound notification email.
type MailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Mailer hands messages to the delivery pipeline.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}
