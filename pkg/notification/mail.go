package notification

import (
	"fmt"
	"net/smtp"

	"github.com/quantarc/fuzzywheel/pkg/logger"
	logrusadapter "github.com/quantarc/fuzzywheel/pkg/logger/logrus"
	"github.com/quantarc/fuzzywheel/pkg/recommend"
)

var mailLog logger.Logger = logrusadapter.New(logger.WarnLevel)

// Mail handles email notifications for the application
type Mail struct {
	auth              smtp.Auth
	smtpServerPort    int
	smtpServerAddress string
	to                string
	from              string
}

// MailParams contains all parameters needed to initialize a Mail instance
type MailParams struct {
	SMTPServerPort    int
	SMTPServerAddress string
	To                string
	From              string
	Password          string
}

// NewMail creates a new Mail instance with the provided parameters
func NewMail(params MailParams) Mail {
	return Mail{
		from:              params.From,
		to:                params.To,
		smtpServerPort:    params.SMTPServerPort,
		smtpServerAddress: params.SMTPServerAddress,
		auth: smtp.PlainAuth(
			"",
			params.From,
			params.Password,
			params.SMTPServerAddress,
		),
	}
}

// Notify sends an email notification with the given text
func (m Mail) Notify(text string) {
	serverAddress := fmt.Sprintf("%s:%d", m.smtpServerAddress, m.smtpServerPort)

	message := fmt.Sprintf(
		`To: "User" <%s>
From: "FuzzyWheel" <%s>
%s`,
		m.to,
		m.from,
		text,
	)

	err := smtp.SendMail(
		serverAddress,
		m.auth,
		m.from,
		[]string{m.to},
		[]byte(message),
	)

	if err != nil {
		mailLog.WithError(err).Error("notification/mail: failed to send email")
	}
}

// OnRecommendation sends a trade recommendation by email
func (m Mail) OnRecommendation(rec recommend.Recommendation) {
	message := fmt.Sprintf("Subject: %s recommendation - %s\n%s",
		rec.Action, rec.Symbol, FormatRecommendation(rec))
	m.Notify(message)
}

// OnError sends an error notification
func (m Mail) OnError(err error) {
	message := fmt.Sprintf("Subject: 🛑 ERROR\nError %s", err)
	m.Notify(message)
}
