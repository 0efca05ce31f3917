package shipments

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gaexpress/shipline/internal/broker/messages"
	"github.com/gaexpress/shipline/internal/models"
	"github.com/gaexpress/shipline/internal/storage/pgshipment"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	createIn   []*models.Shipment
	createOut  *models.Shipment
	createErrs []error // по одной на вызов, nil == успех

	getID  string
	getOut *models.Shipment
	getErr error
	gets   int

	appendID        string
	appendEntry     models.StatusHistoryEntry
	appendOverwrite bool
	appendOut       *models.Shipment
	appendErr       error

	listOut []*models.Shipment

	deleteID  string
	deleteErr error
}

func (f *fakeRepo) Create(ctx context.Context, sh *models.Shipment) (*models.Shipment, error) {
	f.createIn = append(f.createIn, sh)
	i := len(f.createIn) - 1
	if i < len(f.createErrs) && f.createErrs[i] != nil {
		return nil, f.createErrs[i]
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	out := *sh
	now := time.Now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now
	return &out, nil
}

func (f *fakeRepo) GetByTrackingID(ctx context.Context, trackingID string) (*models.Shipment, error) {
	f.getID = trackingID
	f.gets++
	return f.getOut, f.getErr
}

func (f *fakeRepo) AppendStatus(ctx context.Context, trackingID string, entry models.StatusHistoryEntry, overwriteNotes bool) (*models.Shipment, error) {
	f.appendID = trackingID
	f.appendEntry = entry
	f.appendOverwrite = overwriteNotes
	return f.appendOut, f.appendErr
}

func (f *fakeRepo) ListAll(ctx context.Context) ([]*models.Shipment, error) {
	return f.listOut, nil
}

func (f *fakeRepo) Delete(ctx context.Context, trackingID string) error {
	f.deleteID = trackingID
	return f.deleteErr
}

type fakeCache struct {
	m map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{m: map[string][]byte{}} }

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, ok := c.m[key]
	return b, ok, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.m[key] = value
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.m, key)
	return nil
}

type fakeProducer struct {
	topics []string
	keys   []string
	values [][]byte
	err    error
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, string(key))
	p.values = append(p.values, value)
	return p.err
}

func validInput() models.ShipmentCreateInput {
	return models.ShipmentCreateInput{
		SenderName:    "A",
		SenderEmail:   "a@x.com",
		SenderPhone:   "+232-111",
		ReceiverName:  "B",
		ReceiverEmail: "b@x.com",
		ReceiverPhone: "+44-222",
		ParcelType:    "gold",
		Weight:        "1kg",
		Value:         "$1000",
		Origin:        "Sierra Leone",
		Destination:   "UK",
	}
}

func TestSubmit_Validation(t *testing.T) {
	s := New(&fakeRepo{}, nil, nil, 0)

	in := validInput()
	in.SenderName = ""
	in.ReceiverEmail = "not-an-email"

	_, err := s.Submit(context.Background(), in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "is required", verr.Fields["senderName"])
	require.Equal(t, "must be a valid email", verr.Fields["receiverEmail"])
}

func TestSubmit_HappyPath(t *testing.T) {
	r := &fakeRepo{}
	c := newFakeCache()
	p := &fakeProducer{}
	s := New(r, c, p, 10*time.Minute)

	out, err := s.Submit(context.Background(), validInput())
	require.NoError(t, err)
	require.NotEmpty(t, out.TrackingID)
	require.Equal(t, models.ShipmentStatusPending, out.Status)
	require.Len(t, out.StatusHistory, 1)
	require.Equal(t, models.ShipmentStatusPending, out.StatusHistory[0].Status)

	// запись легла в кэш
	_, ok := c.m[currentKey(out.TrackingID)]
	require.True(t, ok)

	// уведомление ушло best-effort
	require.Equal(t, []string{messages.TopicShipmentSubmitted}, p.topics)
	var msg messages.ShipmentSubmitted
	require.NoError(t, json.Unmarshal(p.values[0], &msg))
	require.Equal(t, out.TrackingID, msg.TrackingID)
	require.Equal(t, "a@x.com", msg.SenderEmail)
}

func TestSubmit_PublishFailureSwallowed(t *testing.T) {
	r := &fakeRepo{}
	p := &fakeProducer{err: errors.New("broker down")}
	s := New(r, nil, p, 0)

	out, err := s.Submit(context.Background(), validInput())
	require.NoError(t, err)
	require.NotEmpty(t, out.TrackingID)
}

func TestSubmit_CollisionRetry(t *testing.T) {
	r := &fakeRepo{createErrs: []error{pgshipment.ErrDuplicateTrackingID, nil}}
	s := New(r, nil, nil, 0)

	ids := []string{"GAE1", "GAE2"}
	s.genID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	out, err := s.Submit(context.Background(), validInput())
	require.NoError(t, err)
	require.Equal(t, "GAE2", out.TrackingID)
	require.Len(t, r.createIn, 2)
}

func TestSubmit_CollisionExhausted(t *testing.T) {
	errs := make([]error, createRetries)
	for i := range errs {
		errs[i] = pgshipment.ErrDuplicateTrackingID
	}
	s := New(&fakeRepo{createErrs: errs}, nil, nil, 0)

	_, err := s.Submit(context.Background(), validInput())
	require.ErrorIs(t, err, ErrCollisionExhausted)
}

func TestTrack_CacheHit(t *testing.T) {
	r := &fakeRepo{}
	c := newFakeCache()
	s := New(r, c, nil, 10*time.Minute)

	want := &models.Shipment{TrackingID: "GAE7", Status: models.ShipmentStatusPending}
	b, _ := json.Marshal(want)
	c.m[currentKey("GAE7")] = b

	out, err := s.Track(context.Background(), "GAE7")
	require.NoError(t, err)
	require.Equal(t, "GAE7", out.TrackingID)
	require.Zero(t, r.gets) // БД не трогали
}

func TestTrack_CacheMissGoesToRepo(t *testing.T) {
	want := &models.Shipment{TrackingID: "GAE8", Status: models.ShipmentStatusInTransit}
	r := &fakeRepo{getOut: want}
	c := newFakeCache()
	s := New(r, c, nil, 10*time.Minute)

	out, err := s.Track(context.Background(), "GAE8")
	require.NoError(t, err)
	require.Equal(t, want, out)
	require.Equal(t, "GAE8", r.getID)

	// результат закэширован
	_, ok := c.m[currentKey("GAE8")]
	require.True(t, ok)
}

func TestTrack_NotFoundPassesThrough(t *testing.T) {
	r := &fakeRepo{getErr: pgshipment.ErrNotFound}
	s := New(r, nil, nil, 0)

	_, err := s.Track(context.Background(), "GAEMISSING")
	require.ErrorIs(t, err, pgshipment.ErrNotFound)
}

func TestTrack_EmptyID(t *testing.T) {
	s := New(&fakeRepo{}, nil, nil, 0)
	_, err := s.Track(context.Background(), "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSetStatus_InvalidStatus(t *testing.T) {
	r := &fakeRepo{}
	s := New(r, nil, nil, 0)

	_, err := s.SetStatus(context.Background(), models.StatusUpdateInput{
		TrackingID: "GAE1",
		Status:     "teleported",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields["status"], "teleported")
	require.Empty(t, r.appendID) // до стора не дошли
}

func TestSetStatus_DefaultNote(t *testing.T) {
	updated := &models.Shipment{
		TrackingID:    "GAE1",
		ReceiverEmail: "b@x.com",
		Status:        models.ShipmentStatusInTransit,
		StatusHistory: []models.StatusHistoryEntry{
			{Status: models.ShipmentStatusPending},
			{Status: models.ShipmentStatusInTransit},
		},
	}
	r := &fakeRepo{appendOut: updated}
	p := &fakeProducer{}
	s := New(r, nil, p, 0)

	out, err := s.SetStatus(context.Background(), models.StatusUpdateInput{
		TrackingID: "GAE1",
		Status:     models.ShipmentStatusInTransit,
	})
	require.NoError(t, err)
	require.Equal(t, updated, out)

	require.Equal(t, "GAE1", r.appendID)
	require.False(t, r.appendOverwrite) // пустые notes не затирают прежние
	require.Equal(t, "Status updated to in_transit", r.appendEntry.Notes)

	require.Equal(t, []string{messages.TopicStatusChanged}, p.topics)
	var msg messages.StatusChanged
	require.NoError(t, json.Unmarshal(p.values[0], &msg))
	require.Equal(t, models.ShipmentStatusPending, msg.OldStatus)
	require.Equal(t, models.ShipmentStatusInTransit, msg.NewStatus)
}

func TestSetStatus_ExplicitNotesOverwrite(t *testing.T) {
	r := &fakeRepo{appendOut: &models.Shipment{TrackingID: "GAE1"}}
	s := New(r, nil, nil, 0)

	_, err := s.SetStatus(context.Background(), models.StatusUpdateInput{
		TrackingID: "GAE1",
		Status:     models.ShipmentStatusOnHold,
		Notes:      "customs check",
	})
	require.NoError(t, err)
	require.True(t, r.appendOverwrite)
	require.Equal(t, "customs check", r.appendEntry.Notes)
}

func TestSetStatus_NotFound(t *testing.T) {
	r := &fakeRepo{appendErr: pgshipment.ErrNotFound}
	s := New(r, nil, nil, 0)

	_, err := s.SetStatus(context.Background(), models.StatusUpdateInput{
		TrackingID: "GAEMISSING",
		Status:     models.ShipmentStatusDelivered,
	})
	require.ErrorIs(t, err, pgshipment.ErrNotFound)
}

func TestDelete_InvalidatesCache(t *testing.T) {
	r := &fakeRepo{}
	c := newFakeCache()
	c.m[currentKey("GAE1")] = []byte(`{}`)
	s := New(r, c, nil, time.Minute)

	require.NoError(t, s.Delete(context.Background(), "GAE1"))
	require.Equal(t, "GAE1", r.deleteID)
	_, ok := c.m[currentKey("GAE1")]
	require.False(t, ok)
}

func TestSubmitContact(t *testing.T) {
	p := &fakeProducer{}
	s := New(&fakeRepo{}, nil, p, 0)

	err := s.SubmitContact(context.Background(), models.ContactRequest{
		Name:    "C",
		Email:   "c@x.com",
		Phone:   "+1",
		Subject: "hello",
		Message: "ping",
	})
	require.NoError(t, err)
	require.Equal(t, []string{messages.TopicContactRequested}, p.topics)
	require.Equal(t, "c@x.com", p.keys[0])
}

func TestSubmitContact_PublishErrorSurfaces(t *testing.T) {
	p := &fakeProducer{err: errors.New("broker down")}
	s := New(&fakeRepo{}, nil, p, 0)

	err := s.SubmitContact(context.Background(), models.ContactRequest{
		Name: "C", Email: "c@x.com", Phone: "+1", Subject: "s", Message: "m",
	})
	require.Error(t, err)
}
