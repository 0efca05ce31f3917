package fake

import (
	"context"
	"fmt"

	"github.com/gaexpress/shipline/internal/integrations/advisor"
)

// FakeClient — заглушка советника для локального запуска без API-ключа.
// Отдаёт детерминированный текст по входным полям.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Advise(ctx context.Context, req advisor.AdviceRequest) (string, error) {
	origin := req.Origin
	if origin == "" {
		origin = advisor.DefaultOrigin
	}
	return fmt.Sprintf(
		"Shipping %s (%s) from %s to %s requires an export licence, a certificate of origin and a customs declaration. Verify carrier restrictions for high-value cargo before dispatch.",
		req.MineralType, req.Quantity, origin, req.Destination,
	), nil
}
