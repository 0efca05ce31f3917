package pgshipment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gaexpress/shipline/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const pgUniqueViolation = "23505"

const shipmentColumns = `
  tracking_id,
  sender_name, sender_email, sender_phone,
  receiver_name, receiver_email, receiver_phone,
  parcel_type, weight, value, origin, destination,
  notes, status, status_history,
  created_at, updated_at`

func (s *Storage) Create(ctx context.Context, sh *models.Shipment) (*models.Shipment, error) {
	history, err := json.Marshal(sh.StatusHistory)
	if err != nil {
		return nil, errors.Wrap(err, "marshal history")
	}

	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
INSERT INTO shipments (
  tracking_id,
  sender_name, sender_email, sender_phone,
  receiver_name, receiver_email, receiver_phone,
  parcel_type, weight, value, origin, destination,
  notes, status, status_history,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$16)
RETURNING`+shipmentColumns,
		sh.TrackingID,
		sh.SenderName, sh.SenderEmail, sh.SenderPhone,
		sh.ReceiverName, sh.ReceiverEmail, sh.ReceiverPhone,
		sh.ParcelType, sh.Weight, sh.Value, sh.Origin, sh.Destination,
		sh.Notes, sh.Status, history,
		now)

	out, err := scanShipment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDuplicateTrackingID
		}
		return nil, errors.Wrap(err, "insert shipment")
	}
	return out, nil
}

// GetByTrackingID — точечный поиск по первичному ключу. Никаких
// fallback-сканов всего хранилища, как это делал блобовый вариант.
func (s *Storage) GetByTrackingID(ctx context.Context, trackingID string) (*models.Shipment, error) {
	row := s.db.QueryRow(ctx, `
SELECT`+shipmentColumns+`
FROM shipments
WHERE tracking_id = $1
`, trackingID)

	out, err := scanShipment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "select shipment")
	}
	return out, nil
}

// AppendStatus атомарно дописывает запись в историю и выставляет статус
// одним UPDATE. Чтение-слияние-запись здесь недопустимо: два конкурентных
// апдейта не должны терять записи истории друг друга.
func (s *Storage) AppendStatus(ctx context.Context, trackingID string, entry models.StatusHistoryEntry, overwriteNotes bool) (*models.Shipment, error) {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return nil, errors.Wrap(err, "marshal history entry")
	}

	row := s.db.QueryRow(ctx, `
UPDATE shipments
SET
  status = $2,
  status_history = status_history || $3::jsonb,
  notes = CASE WHEN $4 THEN $5 ELSE notes END,
  updated_at = clock_timestamp()
WHERE tracking_id = $1
RETURNING`+shipmentColumns,
		trackingID, entry.Status, entryJSON, overwriteNotes, entry.Notes)

	out, err := scanShipment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "append status")
	}
	return out, nil
}

func (s *Storage) ListAll(ctx context.Context) ([]*models.Shipment, error) {
	rows, err := s.db.Query(ctx, `
SELECT`+shipmentColumns+`
FROM shipments
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, errors.Wrap(err, "select shipments")
	}
	defer rows.Close()

	var out []*models.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan shipment")
		}
		out = append(out, sh)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) Delete(ctx context.Context, trackingID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM shipments WHERE tracking_id = $1`, trackingID)
	if err != nil {
		return errors.Wrap(err, "delete shipment")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanShipment(row pgx.Row) (*models.Shipment, error) {
	var sh models.Shipment
	var history []byte
	if err := row.Scan(
		&sh.TrackingID,
		&sh.SenderName, &sh.SenderEmail, &sh.SenderPhone,
		&sh.ReceiverName, &sh.ReceiverEmail, &sh.ReceiverPhone,
		&sh.ParcelType, &sh.Weight, &sh.Value, &sh.Origin, &sh.Destination,
		&sh.Notes, &sh.Status, &history,
		&sh.CreatedAt, &sh.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &sh.StatusHistory); err != nil {
			return nil, errors.Wrap(err, "unmarshal history")
		}
	}
	return &sh, nil
}
