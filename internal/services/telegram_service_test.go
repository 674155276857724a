package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTelegramTestServer(t *testing.T, status int, got *telegramMessage) (*TelegramService, *string) {
	t.Helper()
	var path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		w.WriteHeader(status)
	}))

	svc := NewTelegramService("bot-token", "42", slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithBaseURL(srv.URL)
	t.Cleanup(func() {
		svc.client.CloseIdleConnections()
		srv.Close()
	})
	return svc, &path
}

func TestTelegramService_NotifyNewOrder(t *testing.T) {
	var got telegramMessage
	svc, path := newTelegramTestServer(t, http.StatusOK, &got)

	err := svc.NotifyNewOrder(context.Background(), OrderNotification{
		OrderNumber:   "ORD-20240101-ABCD",
		Items:         []OrderItemNotification{{Name: "Mug <large>", Quantity: 2, Price: 15000}},
		TotalAmount:   30000,
		Currency:      "IDR",
		CustomerName:  "A",
		CustomerEmail: "a@x.com",
		Address:       "Main St, Jakarta",
		PaymentMethod: "cash",
		Status:        "new",
	})
	require.NoError(t, err)

	assert.Equal(t, "/botbot-token/sendMessage", *path)
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.Contains(t, got.Text, "ORD-20240101-ABCD")
	assert.Contains(t, got.Text, "Mug &lt;large&gt;")
	assert.Contains(t, got.Text, "2 x 15,000 IDR = 30,000 IDR")
}

func TestTelegramService_Non200(t *testing.T) {
	var got telegramMessage
	svc, _ := newTelegramTestServer(t, http.StatusBadRequest, &got)

	err := svc.NotifyOrderStatus(context.Background(), "ORD-1", "accepted")
	assert.ErrorContains(t, err, "status 400")
}

func TestTelegramService_Disabled(t *testing.T) {
	svc := NewTelegramService("", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.False(t, svc.Enabled())
	assert.NoError(t, svc.NotifyNewOrder(context.Background(), OrderNotification{}))
	assert.NoError(t, svc.SendMessage(context.Background(), "1", "hi"))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "0 IDR", FormatPrice(0, ""))
	assert.Equal(t, "999 IDR", FormatPrice(999, "IDR"))
	assert.Equal(t, "1,000 IDR", FormatPrice(1000, "IDR"))
	assert.Equal(t, "1,234,567 USD", FormatPrice(1234567.89, "USD"))
	assert.Equal(t, "-1,500 IDR", FormatPrice(-1500, "IDR"))
}
