package advisor

import (
	"context"

	"github.com/pkg/errors"
)

// ErrUnavailable — внешний генератор текста не ответил или ответил пусто.
// Для клиента это отдельная некритичная ошибка, не связанная с отправлениями.
var ErrUnavailable = errors.New("compliance advisory unavailable")

// DefaultOrigin подставляется, если страна происхождения не указана.
const DefaultOrigin = "Sierra Leone"

type AdviceRequest struct {
	MineralType string `json:"mineralType" validate:"required"`
	Quantity    string `json:"quantity" validate:"required"`
	Origin      string `json:"origin"`
	Destination string `json:"destination" validate:"required"`
}

// Client — внешняя граница: свободный текст, без ретраев и кэширования,
// содержимое ответа не валидируем и не парсим.
type Client interface {
	Advise(ctx context.Context, req AdviceRequest) (string, error)
}
