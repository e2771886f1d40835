package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/khushwant-singh1/bundle-market/internal/core/port"
	"github.com/khushwant-singh1/bundle-market/internal/infra/config"
	"github.com/khushwant-singh1/bundle-market/internal/infra/logger"
)

// LogMailer records outbound mail in the structured log instead of sending
// it. Delivery itself is owned by a separate notification service consuming
// the order topics; this adapter keeps local environments and the OTP path
// functional without SMTP credentials.
type LogMailer struct {
	cfg    config.MailSettings
	logger *zap.Logger
}

// NewLogMailer constructs a logging mail adapter.
func NewLogMailer(cfg config.MailSettings, log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{cfg: cfg, logger: log}
}

// Send logs the message. It never fails.
func (m *LogMailer) Send(_ context.Context, mail port.Mail) error {
	m.logger.Info("outbound mail",
		zap.String("from", m.cfg.FromAddress),
		zap.String("to", logger.MaskEmail(mail.To)),
		zap.String("subject", mail.Subject),
		zap.Int("body_bytes", len(mail.HTMLBody)),
	)
	return nil
}

var _ port.Mailer = (*LogMailer)(nil)
