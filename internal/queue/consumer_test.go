package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/beach-seat-reservation/internal/lib/logger/slogdiscard"
)

func TestHandleBookingConfirmedAppends(t *testing.T) {
	t.Parallel()

	c := &Consumer{Dir: t.TempDir(), Log: slogdiscard.NewDiscardLogger()}
	ev := BookingConfirmedEvent{
		BookingID: "b-1", UserID: "u-1", UserName: "Mario", UserSurname: "Rossi",
		BeachName: "Lido 1", Row: "C", Index: 4, Date: "2024-07-01", Chairs: 3, Price: 20,
		PaymentRef: "pi_1", ConfirmedAt: "2024-06-20T10:00:00Z",
	}
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, c.HandleBookingConfirmed(body))
	require.NoError(t, c.HandleBookingConfirmed(body))

	data, err := os.ReadFile(filepath.Join(c.Dir, "booking.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "booking_id=b-1")
	assert.Contains(t, string(data), "place=C4")
	assert.Contains(t, string(data), "price=20 EUR")
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestHandleRefundRequested(t *testing.T) {
	t.Parallel()

	c := &Consumer{Dir: t.TempDir(), Log: slogdiscard.NewDiscardLogger()}
	body, err := json.Marshal(RefundRequestedEvent{RefundID: "r-1", Provider: "paypal", ExternalID: "ORDER-1", AmountMinor: 1500})
	require.NoError(t, err)

	require.NoError(t, c.HandleRefundRequested(body))

	data, err := os.ReadFile(filepath.Join(c.Dir, "refunds.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "refund_id=r-1")
	assert.Contains(t, string(data), "amount=1500 cents")
}

func TestHandlePasswordResetSpoolsPrivately(t *testing.T) {
	t.Parallel()

	c := &Consumer{Dir: t.TempDir(), Log: slogdiscard.NewDiscardLogger()}
	body, err := json.Marshal(PasswordResetRequestedEvent{
		UserID: "u-1", Email: "mario@example.com", Token: "abc123", ExpiresAt: "2024-06-20T10:15:00Z",
	})
	require.NoError(t, err)

	require.NoError(t, c.HandlePasswordResetRequested(body))

	path := filepath.Join(c.Dir, "resets.outbox")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to=mario@example.com")
	assert.Contains(t, string(data), "token=abc123")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	empty, err := json.Marshal(PasswordResetRequestedEvent{Email: "mario@example.com"})
	require.NoError(t, err)
	assert.Error(t, c.HandlePasswordResetRequested(empty))
}

func TestHandleRejectsBadJSON(t *testing.T) {
	t.Parallel()

	c := &Consumer{Dir: t.TempDir(), Log: slogdiscard.NewDiscardLogger()}
	assert.Error(t, c.HandleBookingConfirmed([]byte("{")))
	assert.Error(t, c.HandleRefundRequested([]byte("nope")))
}
