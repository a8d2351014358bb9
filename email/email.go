package email

import (
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Links struct {
	ActivationURL string
	RecoveryURL   string
}

type Mail struct {
	client *sendgrid.Client
	from   *mail.Email
	links  Links
}

func New(apiKey string, from string, links Links) *Mail {
	return &Mail{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail("Aprendendo Juntos", from),
		links:  links,
	}
}

func (m *Mail) SendActivationToken(to string, token string) error {
	link := fmt.Sprintf("%s?token=%s", m.links.ActivationURL, token)
	body := fmt.Sprintf("Welcome! Activate your account by visiting %s", link)
	html := fmt.Sprintf(`<p>Welcome! <a href=%q>Activate your account</a>.</p>`, link)

	msg := mail.NewSingleEmail(m.from, "Activate your account", mail.NewEmail("", to), body, html)
	return m.send(msg)
}

func (m *Mail) SendRecoveryToken(to string, token string) error {
	link := fmt.Sprintf("%s?token=%s", m.links.RecoveryURL, token)
	body := fmt.Sprintf("Reset your password by visiting %s", link)
	html := fmt.Sprintf(`<p><a href=%q>Reset your password</a>.</p>`, link)

	msg := mail.NewSingleEmail(m.from, "Recover your account", mail.NewEmail("", to), body, html)
	return m.send(msg)
}

func (m *Mail) send(msg *mail.SGMailV3) error {
	resp, err := m.client.Send(msg)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sending email: sendgrid responded %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
