package notify

import (
	"log/slog"

	"rcaflow/internal/platform/config"
)

// NewMailer picks the delivery backend named by cfg.Provider.
func NewMailer(cfg config.EmailConfig, logger *slog.Logger) Mailer {
	if cfg.Provider == "resend" {
		return NewResendMailer(cfg.ResendAPIKey, cfg.From)
	}
	return NewLogMailer(logger)
}
