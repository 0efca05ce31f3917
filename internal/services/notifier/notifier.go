package notifier

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"text/template"

	"github.com/gaexpress/shipline/internal/broker/messages"
	"github.com/gaexpress/shipline/internal/metrics"
)

type Mailer interface {
	Send(to, subject, body string) error
	AdminEmail() string
}

type Stats struct {
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Skipped   uint64 `json:"skipped"`
}

// Notifier превращает сообщения из брокера в письма.
// Доставка best-effort: сбой логируем и идём дальше, ретраев нет —
// иначе залипшее письмо остановит всю группу консьюмера.
type Notifier struct {
	mailer Mailer

	delivered atomic.Uint64
	failed    atomic.Uint64
	skipped   atomic.Uint64
}

func New(mailer Mailer) *Notifier {
	return &Notifier{mailer: mailer}
}

func (n *Notifier) Stats() Stats {
	return Stats{
		Delivered: n.delivered.Load(),
		Failed:    n.failed.Load(),
		Skipped:   n.skipped.Load(),
	}
}

// Handle всегда возвращает nil: offset коммитим в любом случае.
func (n *Notifier) Handle(topic string, key, value []byte) error {
	var to, subject, body string
	var err error

	switch topic {
	case messages.TopicShipmentSubmitted:
		to, subject, body, err = n.renderSubmitted(value)
	case messages.TopicStatusChanged:
		to, subject, body, err = n.renderStatusChanged(value)
	case messages.TopicContactRequested:
		to, subject, body, err = n.renderContact(value)
	default:
		slog.Warn("unknown notification topic", "topic", topic)
		n.skipped.Add(1)
		metrics.MailsSkippedTotal.Inc()
		return nil
	}
	if err != nil {
		slog.Error("notification decode failed", "topic", topic, "key", string(key), "err", err)
		n.skipped.Add(1)
		metrics.MailsSkippedTotal.Inc()
		return nil
	}

	if err := n.mailer.Send(to, subject, body); err != nil {
		slog.Error("notification send failed", "topic", topic, "to", to, "err", err)
		n.failed.Add(1)
		metrics.MailsFailedTotal.Inc()
		return nil
	}
	n.delivered.Add(1)
	metrics.MailsDeliveredTotal.Inc()
	return nil
}

var submittedTmpl = template.Must(template.New("submitted").Parse(`New shipment request {{.TrackingID}}

Sender:   {{.SenderName}} <{{.SenderEmail}}> {{.SenderPhone}}
Receiver: {{.ReceiverName}} <{{.ReceiverEmail}}> {{.ReceiverPhone}}

Parcel:      {{.ParcelType}}
Weight:      {{.Weight}}
Value:       {{.Value}}
Route:       {{.Origin}} -> {{.Destination}}
{{- if .Notes}}
Notes:       {{.Notes}}
{{- end}}

Submitted at {{.SubmittedAt.Format "2006-01-02 15:04:05 MST"}}.
`))

func (n *Notifier) renderSubmitted(value []byte) (string, string, string, error) {
	var m messages.ShipmentSubmitted
	if err := json.Unmarshal(value, &m); err != nil {
		return "", "", "", err
	}
	var b strings.Builder
	if err := submittedTmpl.Execute(&b, m); err != nil {
		return "", "", "", err
	}
	subject := fmt.Sprintf("New shipment %s: %s -> %s", m.TrackingID, m.Origin, m.Destination)
	return n.mailer.AdminEmail(), subject, b.String(), nil
}

var statusTmpl = template.Must(template.New("status").Parse(`Hello {{.ReceiverName}},

Your shipment {{.TrackingID}} changed status{{if .OldStatus}} from "{{.OldStatus}}"{{end}} to "{{.NewStatus}}".
{{- if .Notes}}

Note from the operator: {{.Notes}}
{{- end}}

You can track the shipment with its tracking number at any time.
`))

func (n *Notifier) renderStatusChanged(value []byte) (string, string, string, error) {
	var m messages.StatusChanged
	if err := json.Unmarshal(value, &m); err != nil {
		return "", "", "", err
	}
	var b strings.Builder
	if err := statusTmpl.Execute(&b, m); err != nil {
		return "", "", "", err
	}
	subject := fmt.Sprintf("Shipment %s is now %s", m.TrackingID, m.NewStatus)
	return m.ReceiverEmail, subject, b.String(), nil
}

var contactTmpl = template.Must(template.New("contact").Parse(`New contact form submission

From:    {{.Name}} <{{.Email}}>
Phone:   {{.Phone}}
Subject: {{.Subject}}

{{.Message}}
`))

func (n *Notifier) renderContact(value []byte) (string, string, string, error) {
	var m messages.ContactRequested
	if err := json.Unmarshal(value, &m); err != nil {
		return "", "", "", err
	}
	var b strings.Builder
	if err := contactTmpl.Execute(&b, m); err != nil {
		return "", "", "", err
	}
	subject := fmt.Sprintf("Contact form: %s", m.Subject)
	return n.mailer.AdminEmail(), subject, b.String(), nil
}
