package messages

import "time"

// Топики нотификаций. Ключ сообщения — trackingId (для contact — email).
const (
	TopicShipmentSubmitted = "shipment.submitted"
	TopicStatusChanged     = "shipment.status_changed"
	TopicContactRequested  = "contact.requested"
)

// ShipmentSubmitted — уведомление о новой заявке, уходит админу на почту.
type ShipmentSubmitted struct {
	TrackingID    string    `json:"tracking_id"`
	SenderName    string    `json:"sender_name"`
	SenderEmail   string    `json:"sender_email"`
	SenderPhone   string    `json:"sender_phone"`
	ReceiverName  string    `json:"receiver_name"`
	ReceiverEmail string    `json:"receiver_email"`
	ReceiverPhone string    `json:"receiver_phone"`
	ParcelType    string    `json:"parcel_type"`
	Weight        string    `json:"weight"`
	Value         string    `json:"value"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	Notes         string    `json:"notes,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// StatusChanged — уведомление получателю о смене статуса.
type StatusChanged struct {
	TrackingID    string    `json:"tracking_id"`
	ReceiverName  string    `json:"receiver_name"`
	ReceiverEmail string    `json:"receiver_email"`
	OldStatus     string    `json:"old_status"`
	NewStatus     string    `json:"new_status"`
	Notes         string    `json:"notes,omitempty"`
	ChangedAt     time.Time `json:"changed_at"`
}

// ContactRequested — заявка с формы обратной связи, пересылается админу.
type ContactRequested struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Subject     string    `json:"subject"`
	Message     string    `json:"message"`
	RequestedAt time.Time `json:"requested_at"`
}
