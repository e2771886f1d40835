package port

import "context"

// Mail is an outbound message handed to the email collaborator.
type Mail struct {
	To       string
	Subject  string
	HTMLBody string
}

// Mailer delivers email. OTP sends propagate failures synchronously; the
// fulfilment path logs and tolerates them.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}
