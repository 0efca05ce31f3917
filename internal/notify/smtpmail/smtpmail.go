package smtpmail

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/pkg/errors"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// AdminEmail — адрес, на который уходят заявки и контактные формы.
	AdminEmail string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Sender struct {
	cfg  Config
	send sendFunc
}

func New(cfg Config) *Sender {
	return &Sender{cfg: cfg, send: smtp.SendMail}
}

func newWithSendFunc(cfg Config, send sendFunc) *Sender {
	return &Sender{cfg: cfg, send: send}
}

func (s *Sender) AdminEmail() string { return s.cfg.AdminEmail }

// Send отправляет plain-text письмо. Блокирующий вызов без контекста —
// живёт только в нотификаторе, API-путь сюда не ходит.
func (s *Sender) Send(to, subject, body string) error {
	if to == "" {
		return errors.New("recipient is empty")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := s.send(addr, auth, s.cfg.From, []string{to}, []byte(b.String())); err != nil {
		return errors.Wrap(err, "smtp send")
	}
	return nil
}
