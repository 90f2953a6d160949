package config

// MailConfig addresses the SMTP relay used for confirmation emails.  An
// empty Host selects the log-only notifier.
type MailConfig struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
}

func LoadMailConfig() MailConfig {
	return MailConfig{
		Host:     envStr("SMTP_HOST", ""),
		Port:     envInt("SMTP_PORT", 587),
		User:     envStr("SMTP_USER", ""),
		Pass:     envStr("SMTP_PASS", ""),
		From:     envStr("MAIL_FROM", "no-reply@reservas-express.local"),
		FromName: envStr("MAIL_FROM_NAME", "Reservas Express"),
	}
}
