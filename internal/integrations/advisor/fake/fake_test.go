package fake

import (
	"context"
	"testing"

	"github.com/gaexpress/shipline/internal/integrations/advisor"
	"github.com/stretchr/testify/require"
)

func TestFakeAdvise(t *testing.T) {
	f := New()
	text, err := f.Advise(context.Background(), advisor.AdviceRequest{
		MineralType: "gold",
		Quantity:    "1kg",
		Destination: "UK",
	})
	require.NoError(t, err)
	require.Contains(t, text, "gold")
	// пустой origin заменяется дефолтным
	require.Contains(t, text, advisor.DefaultOrigin)
	require.Contains(t, text, "UK")
}
