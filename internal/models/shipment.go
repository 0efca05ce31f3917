package models

import "time"

// Статусы отправления. Перечень фиксированный, переходы не ограничиваем.
const (
	ShipmentStatusPending        = "pending"
	ShipmentStatusProcessing     = "processing"
	ShipmentStatusInTransit      = "in_transit"
	ShipmentStatusOutForDelivery = "out_for_delivery"
	ShipmentStatusDelivered      = "delivered"
	ShipmentStatusOnHold         = "on_hold"
	ShipmentStatusCancelled      = "cancelled"
)

var shipmentStatuses = map[string]struct{}{
	ShipmentStatusPending:        {},
	ShipmentStatusProcessing:     {},
	ShipmentStatusInTransit:      {},
	ShipmentStatusOutForDelivery: {},
	ShipmentStatusDelivered:      {},
	ShipmentStatusOnHold:         {},
	ShipmentStatusCancelled:      {},
}

func ValidShipmentStatus(s string) bool {
	_, ok := shipmentStatuses[s]
	return ok
}

// Shipment — единственная долговременная сущность системы.
// Имена JSON-полей зафиксированы для совместимости с внешними клиентами.
type Shipment struct {
	TrackingID    string               `json:"trackingId"`
	SenderName    string               `json:"senderName"`
	SenderEmail   string               `json:"senderEmail"`
	SenderPhone   string               `json:"senderPhone"`
	ReceiverName  string               `json:"receiverName"`
	ReceiverEmail string               `json:"receiverEmail"`
	ReceiverPhone string               `json:"receiverPhone"`
	ParcelType    string               `json:"parcelType"`
	Weight        string               `json:"weight"`
	Value         string               `json:"value"`
	Origin        string               `json:"origin"`
	Destination   string               `json:"destination"`
	Notes         string               `json:"notes,omitempty"`
	Status        string               `json:"status"`
	StatusHistory []StatusHistoryEntry `json:"statusHistory"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// StatusHistoryEntry — запись в append-only истории статусов.
type StatusHistoryEntry struct {
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ShipmentCreateInput struct {
	SenderName    string `json:"senderName" validate:"required"`
	SenderEmail   string `json:"senderEmail" validate:"required,email"`
	SenderPhone   string `json:"senderPhone" validate:"required"`
	ReceiverName  string `json:"receiverName" validate:"required"`
	ReceiverEmail string `json:"receiverEmail" validate:"required,email"`
	ReceiverPhone string `json:"receiverPhone" validate:"required"`
	ParcelType    string `json:"parcelType" validate:"required"`
	Weight        string `json:"weight" validate:"required"`
	Value         string `json:"value" validate:"required"`
	Origin        string `json:"origin" validate:"required"`
	Destination   string `json:"destination" validate:"required"`
	Notes         string `json:"notes"`
}

// StatusUpdateInput — запрос смены статуса (админский контур).
type StatusUpdateInput struct {
	TrackingID string `json:"trackingId" validate:"required"`
	Status     string `json:"status" validate:"required"`
	Notes      string `json:"notes"`
}

// ContactRequest — заявка с формы обратной связи. В БД не пишется,
// уходит в очередь нотификаций как есть.
type ContactRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}
