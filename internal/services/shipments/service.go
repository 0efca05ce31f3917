package shipments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/gaexpress/shipline/internal/broker/messages"
	"github.com/gaexpress/shipline/internal/cache"
	"github.com/gaexpress/shipline/internal/models"
	"github.com/gaexpress/shipline/internal/storage/pgshipment"
	"github.com/gaexpress/shipline/internal/trackid"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// ErrCollisionExhausted — не удалось подобрать свободный трек-номер
// за разумное число попыток. На практике почти невозможно.
var ErrCollisionExhausted = errors.New("tracking id collision retries exhausted")

const createRetries = 5

type Repository interface {
	Create(ctx context.Context, sh *models.Shipment) (*models.Shipment, error)
	GetByTrackingID(ctx context.Context, trackingID string) (*models.Shipment, error)
	AppendStatus(ctx context.Context, trackingID string, entry models.StatusHistoryEntry, overwriteNotes bool) (*models.Shipment, error)
	ListAll(ctx context.Context) ([]*models.Shipment, error)
	Delete(ctx context.Context, trackingID string) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// ValidationError — ошибки формы ввода, поле -> причина. Возвращается клиенту
// как структурированный 4xx, в отличие от внутренних ошибок стора.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Fields)
}

type Service struct {
	repo       Repository
	cache      cache.BytesCache
	producer   Producer
	currentTTL time.Duration

	validate *validator.Validate
	sf       singleflight.Group
	genID    func() string
}

func New(repo Repository, c cache.BytesCache, producer Producer, currentTTL time.Duration) *Service {
	v := validator.New()
	// В ошибках валидации отдаём имена json-полей, а не Go-структуры.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Service{
		repo:       repo,
		cache:      c,
		producer:   producer,
		currentTTL: currentTTL,
		validate:   v,
		genID:      trackid.Generate,
	}
}

// Submit валидирует заявку, назначает трек-номер и пишет запись со статусом
// pending и одной записью истории. Коллизия номера — регенерация с лимитом
// попыток, молчаливой перезаписи нет. Письмо админу — best-effort.
func (s *Service) Submit(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error) {
	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	var created *models.Shipment
	for i := 0; i < createRetries; i++ {
		now := time.Now().UTC()
		sh := &models.Shipment{
			TrackingID:    s.genID(),
			SenderName:    in.SenderName,
			SenderEmail:   in.SenderEmail,
			SenderPhone:   in.SenderPhone,
			ReceiverName:  in.ReceiverName,
			ReceiverEmail: in.ReceiverEmail,
			ReceiverPhone: in.ReceiverPhone,
			ParcelType:    in.ParcelType,
			Weight:        in.Weight,
			Value:         in.Value,
			Origin:        in.Origin,
			Destination:   in.Destination,
			Notes:         in.Notes,
			Status:        models.ShipmentStatusPending,
			StatusHistory: []models.StatusHistoryEntry{
				{Status: models.ShipmentStatusPending, Notes: "Shipment created", Timestamp: now},
			},
		}

		out, err := s.repo.Create(ctx, sh)
		if errors.Is(err, pgshipment.ErrDuplicateTrackingID) {
			continue
		}
		if err != nil {
			return nil, err
		}
		created = out
		break
	}
	if created == nil {
		return nil, ErrCollisionExhausted
	}

	s.cachePut(ctx, created)

	s.publish(ctx, messages.TopicShipmentSubmitted, created.TrackingID, messages.ShipmentSubmitted{
		TrackingID:    created.TrackingID,
		SenderName:    created.SenderName,
		SenderEmail:   created.SenderEmail,
		SenderPhone:   created.SenderPhone,
		ReceiverName:  created.ReceiverName,
		ReceiverEmail: created.ReceiverEmail,
		ReceiverPhone: created.ReceiverPhone,
		ParcelType:    created.ParcelType,
		Weight:        created.Weight,
		Value:         created.Value,
		Origin:        created.Origin,
		Destination:   created.Destination,
		Notes:         created.Notes,
		SubmittedAt:   created.CreatedAt,
	})

	return created, nil
}

// Track — чистое чтение по трек-номеру. Кэш best-effort, конкурентные
// промахи по одному номеру схлопываются в один поход в БД.
func (s *Service) Track(ctx context.Context, trackingID string) (*models.Shipment, error) {
	if trackingID == "" {
		return nil, &ValidationError{Fields: map[string]string{"trackingId": "is required"}}
	}

	if s.cache != nil && s.currentTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, currentKey(trackingID)); err == nil && ok {
			var sh models.Shipment
			if json.Unmarshal(b, &sh) == nil {
				return &sh, nil
			}
		}
	}

	v, err, _ := s.sf.Do(trackingID, func() (any, error) {
		sh, err := s.repo.GetByTrackingID(ctx, trackingID)
		if err != nil {
			return nil, err
		}
		s.cachePut(ctx, sh)
		return sh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Shipment), nil
}

// SetStatus атомарно дописывает запись истории и меняет статус.
// Пустые notes не затирают прежние, в историю идёт дефолтное сообщение.
func (s *Service) SetStatus(ctx context.Context, in models.StatusUpdateInput) (*models.Shipment, error) {
	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	if !models.ValidShipmentStatus(in.Status) {
		return nil, &ValidationError{Fields: map[string]string{"status": fmt.Sprintf("unknown status %q", in.Status)}}
	}

	notes := in.Notes
	overwrite := notes != ""
	if notes == "" {
		notes = fmt.Sprintf("Status updated to %s", in.Status)
	}

	updated, err := s.repo.AppendStatus(ctx, in.TrackingID, models.StatusHistoryEntry{
		Status:    in.Status,
		Notes:     notes,
		Timestamp: time.Now().UTC(),
	}, overwrite)
	if err != nil {
		return nil, err
	}

	s.cachePut(ctx, updated)

	oldStatus := ""
	if n := len(updated.StatusHistory); n >= 2 {
		oldStatus = updated.StatusHistory[n-2].Status
	}
	s.publish(ctx, messages.TopicStatusChanged, updated.TrackingID, messages.StatusChanged{
		TrackingID:    updated.TrackingID,
		ReceiverName:  updated.ReceiverName,
		ReceiverEmail: updated.ReceiverEmail,
		OldStatus:     oldStatus,
		NewStatus:     updated.Status,
		Notes:         in.Notes,
		ChangedAt:     updated.UpdatedAt,
	})

	return updated, nil
}

func (s *Service) ListAll(ctx context.Context) ([]*models.Shipment, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) Delete(ctx context.Context, trackingID string) error {
	if trackingID == "" {
		return &ValidationError{Fields: map[string]string{"trackingId": "is required"}}
	}
	if err := s.repo.Delete(ctx, trackingID); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, currentKey(trackingID))
	}
	return nil
}

// SubmitContact пересылает контактную форму в очередь нотификаций.
// Здесь сообщение и есть результат, поэтому ошибку публикации не глотаем.
func (s *Service) SubmitContact(ctx context.Context, in models.ContactRequest) error {
	if err := s.validateInput(in); err != nil {
		return err
	}
	if s.producer == nil {
		return errors.New("notifications are not configured")
	}
	b, err := json.Marshal(messages.ContactRequested{
		Name:        in.Name,
		Email:       in.Email,
		Phone:       in.Phone,
		Subject:     in.Subject,
		Message:     in.Message,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "marshal contact")
	}
	return s.producer.Publish(ctx, messages.TopicContactRequested, []byte(in.Email), b)
}

func (s *Service) validateInput(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "is required"
		case "email":
			fields[fe.Field()] = "must be a valid email"
		default:
			fields[fe.Field()] = "is invalid"
		}
	}
	return &ValidationError{Fields: fields}
}

func (s *Service) cachePut(ctx context.Context, sh *models.Shipment) {
	if s.cache == nil || s.currentTTL <= 0 {
		return
	}
	b, err := json.Marshal(sh)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, currentKey(sh.TrackingID), b, s.currentTTL)
}

// publish — best-effort: запись уже в сторе, сбой нотификации её не откатывает.
func (s *Service) publish(ctx context.Context, topic, key string, msg any) {
	if s.producer == nil {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("notification marshal failed", "topic", topic, "err", err)
		return
	}
	if err := s.producer.Publish(ctx, topic, []byte(key), b); err != nil {
		slog.Warn("notification publish failed", "topic", topic, "trackingId", key, "err", err)
	}
}

func currentKey(trackingID string) string {
	return fmt.Sprintf("shipment:%s:current", trackingID)
}
