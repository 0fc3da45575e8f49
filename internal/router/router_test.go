package router_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/beach-seat-reservation/internal/checkout"
	"github.com/iliyamo/beach-seat-reservation/internal/config"
	"github.com/iliyamo/beach-seat-reservation/internal/database/dbtest"
	"github.com/iliyamo/beach-seat-reservation/internal/handler"
	"github.com/iliyamo/beach-seat-reservation/internal/inventory"
	"github.com/iliyamo/beach-seat-reservation/internal/ledger"
	"github.com/iliyamo/beach-seat-reservation/internal/lib/logger/slogdiscard"
	"github.com/iliyamo/beach-seat-reservation/internal/middleware"
	"github.com/iliyamo/beach-seat-reservation/internal/model"
	"github.com/iliyamo/beach-seat-reservation/internal/payment"
	"github.com/iliyamo/beach-seat-reservation/internal/queue"
	"github.com/iliyamo/beach-seat-reservation/internal/receipt"
	"github.com/iliyamo/beach-seat-reservation/internal/repository"
	"github.com/iliyamo/beach-seat-reservation/internal/router"
	"github.com/iliyamo/beach-seat-reservation/internal/session"
)

const receiptKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type cardMock struct{ mock.Mock }

func (m *cardMock) CreateIntent(ctx context.Context, amountMinor int64, currency string) (payment.Intent, error) {
	args := m.Called(amountMinor, currency)
	return args.Get(0).(payment.Intent), args.Error(1)
}

func (m *cardMock) UpdateIntent(ctx context.Context, id string, amountMinor int64) (payment.Intent, error) {
	args := m.Called(id, amountMinor)
	return args.Get(0).(payment.Intent), args.Error(1)
}

func (m *cardMock) IntentStatus(ctx context.Context, id string) (string, error) {
	args := m.Called(id)
	return args.String(0), args.Error(1)
}

type walletMock struct{ mock.Mock }

func (m *walletMock) CreateOrder(ctx context.Context, amountMinor int64, currency string) (payment.Order, error) {
	args := m.Called(amountMinor, currency)
	return args.Get(0).(payment.Order), args.Error(1)
}

func (m *walletMock) CaptureOrder(ctx context.Context, id string) (payment.Capture, error) {
	args := m.Called(id)
	return args.Get(0).(payment.Capture), args.Error(1)
}

// resetOutbox records the reset tokens that would have been mailed.
type resetOutbox struct {
	mu   sync.Mutex
	sent []queue.PasswordResetRequestedEvent
}

func (o *resetOutbox) PublishPasswordResetRequested(_ context.Context, ev queue.PasswordResetRequestedEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, ev)
	return nil
}

func (o *resetOutbox) last(t *testing.T) queue.PasswordResetRequestedEvent {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent)
	return o.sent[len(o.sent)-1]
}

type server struct {
	e      *echo.Echo
	card   *cardMock
	wallet *walletMock
	ledger *ledger.Service
	resets *resetOutbox
	// purges counts successful requests that went through the purge middleware.
	purges atomic.Int32
}

func (s *server) countPurges(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err == nil && c.Response().Status < http.StatusBadRequest {
			s.purges.Add(1)
		}
		return err
	}
}

func newServer(t *testing.T) *server {
	t.Helper()
	log := slogdiscard.NewDiscardLogger()
	db := dbtest.Open(t)

	cfg := config.Config{
		Env:           config.EnvLocal,
		BcryptCost:    4,
		ResetTokenTTL: 15 * time.Minute,
		AdminEmails:   []string{"admin@example.com"},
		Session:       config.SessionConfig{Secret: "test-secret", TTL: time.Hour, CookieName: "sid"},
	}
	codec, err := receipt.NewCodec(receiptKey)
	require.NoError(t, err)
	inv, err := inventory.New(repository.NewSeatRepo(db), dbtest.BeachID, "2024-05-27", 140)
	require.NoError(t, err)

	store := session.NewMemoryStore()
	book := ledger.New(db, codec, queue.NopPublisher{}, log, dbtest.BeachID)
	refunds := repository.NewRefundRepo(db)
	s := &server{card: &cardMock{}, wallet: &walletMock{}, ledger: book, resets: &resetOutbox{}}
	co := checkout.New(s.card, s.wallet, store, book, refunds, queue.NopPublisher{},
		checkout.Options{Currency: "eur", Timeout: time.Second}, log)

	s.e = router.New(router.Deps{
		Auth:       handler.NewAuthHandler(cfg, repository.NewUserRepo(db), store, s.resets, log),
		Places:     handler.NewPlaceHandler(inv),
		Bookings:   handler.NewBookingHandler(book, true),
		Payments:   handler.NewPaymentHandler(co),
		Admin:      handler.NewAdminHandler(inv, refunds, log),
		Health:     handler.Health(db, nil),
		Session:    middleware.LoadSession(store, cfg.Session.Secret, cfg.Session.CookieName, log),
		Purge:      s.countPurges,
		CORSOrigin: "http://localhost:5173",
	}, log)
	return s
}

// do sends a request carrying cookies and decodes a JSON response into out
// when out is not nil.
func (s *server) do(t *testing.T, method, path, body string, cookies []*http.Cookie, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func (s *server) signupAndLogin(t *testing.T, email, tel string) []*http.Cookie {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/signup",
		`{"name":"Mario","surname":"Rossi","email":"`+email+`","password":"secret1","tel":"`+tel+`"}`, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/login", `{"email":"`+email+`","password":"secret1"}`, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return rec.Result().Cookies()
}

type errBody struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	RefundID string `json:"refundId"`
	Cause    string `json:"cause"`
}

func TestAuthLifecycle(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	var st struct {
		Logged bool            `json:"logged"`
		User   *model.Customer `json:"user"`
	}
	s.do(t, http.MethodGet, "/session", "", nil, &st)
	assert.False(t, st.Logged)

	cookies := s.signupAndLogin(t, "mario@example.com", "3331234567")
	names := map[string]string{}
	for _, c := range cookies {
		names[c.Name] = c.Value
	}
	assert.NotEmpty(t, names["sid"])
	assert.Equal(t, "Mario", names["name"])
	assert.Equal(t, "Rossi", names["surname"])

	s.do(t, http.MethodGet, "/session", "", cookies, &st)
	require.True(t, st.Logged)
	assert.Equal(t, model.RoleCustomer, st.User.Role)

	var e errBody
	rec := s.do(t, http.MethodPost, "/login", `{"email":"mario@example.com","password":"secret1"}`, cookies, &e)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "AlreadyLoggedIn", e.Code)

	rec = s.do(t, http.MethodPut, "/edit-user-info", `{"name":"Luigi","surname":"Verdi","email":"luigi@example.com"}`, cookies, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s.do(t, http.MethodGet, "/session", "", cookies, &st)
	assert.Equal(t, "Luigi", st.User.Name)
	assert.Equal(t, "luigi@example.com", st.User.Email)

	rec = s.do(t, http.MethodPost, "/logout", "", cookies, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/logout", "", cookies, &e)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "NotLoggedIn", e.Code)
}

func TestSignupErrors(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	s.signupAndLogin(t, "mario@example.com", "3331234567")

	tests := []struct {
		name string
		body string
		code string
	}{
		{"short tel", `{"name":"A","surname":"B","email":"a@example.com","password":"secret1","tel":"123"}`, "ValidationError"},
		{"short password", `{"name":"A","surname":"B","email":"a@example.com","password":"123","tel":"3331234568"}`, "ValidationError"},
		{"bad email", `{"name":"A","surname":"B","email":"nope","password":"secret1","tel":"3331234568"}`, "ValidationError"},
		{"duplicate email", `{"name":"A","surname":"B","email":"MARIO@example.com","password":"secret1","tel":"3331234568"}`, "UserAlreadyPresent"},
		{"duplicate tel", `{"name":"A","surname":"B","email":"a@example.com","password":"secret1","tel":"3331234567"}`, "UserAlreadyPresent"},
	}
	for _, tt := range tests {
		var e errBody
		rec := s.do(t, http.MethodPost, "/signup", tt.body, nil, &e)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.name)
		assert.Equal(t, tt.code, e.Code, tt.name)
	}

	var e errBody
	rec := s.do(t, http.MethodPost, "/login", `{"email":"mario@example.com","password":"wrong!"}`, nil, &e)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BadCredentials", e.Code)

	rec = s.do(t, http.MethodPost, "/login", `{"email":"ghost@example.com","password":"secret1"}`, nil, &e)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "EmailNotPresent", e.Code)
}

func TestPasswordReset(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	s.signupAndLogin(t, "mario@example.com", "3331234567")

	var issued struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	rec := s.do(t, http.MethodPost, "/request-change-password", `{"email":"Mario@Example.com"}`, nil, &issued)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, issued.Token)
	assert.False(t, issued.ExpiresAt.IsZero())

	mail := s.resets.last(t)
	assert.Equal(t, "mario@example.com", mail.Email)
	require.NotEmpty(t, mail.Token)
	assert.NotContains(t, rec.Body.String(), mail.Token)

	var e errBody
	rec = s.do(t, http.MethodPost, "/request-change-password", `{"email":"mario@example.com"}`, nil, &e)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "TokenAlreadyPresent", e.Code)

	rec = s.do(t, http.MethodPost, "/change-password", `{"token":"bogus","password":"newpass1"}`, nil, &e)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "TokenNotValid", e.Code)

	rec = s.do(t, http.MethodPost, "/change-password", `{"token":"`+mail.Token+`","password":"newpass1"}`, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/login", `{"email":"mario@example.com","password":"newpass1"}`, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	for _, path := range []string{"/place", "/booked-place-ratio", "/booked", "/initpayment", "/delbook"} {
		var e errBody
		rec := s.do(t, http.MethodGet, path, "", nil, &e)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		assert.Equal(t, "NotLoggedIn", e.Code, path)
	}
}

func TestPlaces(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	cookies := s.signupAndLogin(t, "mario@example.com", "3331234567")

	var rows []model.SeatRow
	rec := s.do(t, http.MethodGet, "/place", "", cookies, &rows)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, rows, 10)
	assert.Equal(t, "1 Fila", rows[0].Label)

	var flat []json.RawMessage
	s.do(t, http.MethodGet, "/place?format=flat", "", cookies, &flat)
	require.Len(t, flat, 160)
	assert.JSONEq(t, `"1 Fila"`, string(flat[0]))
	assert.JSONEq(t, `"2 Fila"`, string(flat[16]))

	var ratio []int
	s.do(t, http.MethodGet, "/booked-place-ratio", "", cookies, &ratio)
	assert.Len(t, ratio, 140)
}

func TestBookingFlow(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	mario := s.signupAndLogin(t, "mario@example.com", "3331234567")
	anna := s.signupAndLogin(t, "anna@example.com", "3331234568")

	var view model.BookingView
	rec := s.do(t, http.MethodPost, "/book", `{"row":3,"column":"B","date":"2024-06-10","chair":2}`, mario, &view)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "B", view.PlaceRow)
	assert.Equal(t, 3, view.PlaceIndex)
	assert.Equal(t, 15, view.Price)
	assert.Equal(t, dbtest.BeachName, view.BeachName)

	var e errBody
	rec = s.do(t, http.MethodPost, "/book", `{"row":"3","column":"B","date":"2024-06-10","chair":"1"}`, anna, &e)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SeatAlreadyBooked", e.Code)

	rec = s.do(t, http.MethodPost, "/book", `{"row":16,"column":"K","date":"2024-06-10","chair":5}`, anna, &e)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationError", e.Code)

	var booked []model.BookingView
	s.do(t, http.MethodGet, "/booked", "", mario, &booked)
	require.Len(t, booked, 1)
	assert.Equal(t, view.ID, booked[0].ID)

	var p model.ReceiptPayload
	rec = s.do(t, http.MethodGet, "/booked/"+view.ID+"/receipt", "", mario, &p)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, view.ID, p.ID)
	rec = s.do(t, http.MethodGet, "/booked/"+view.ID+"/receipt", "", anna, &e)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/book", `{"row":3,"column":"B","date":"2024-06-10"}`, anna, &e)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "DeletionNotPermitted", e.Code)

	rec = s.do(t, http.MethodDelete, "/book", `{"row":4,"column":"B","date":"2024-06-10"}`, mario, &e)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SeatNotBooked", e.Code)

	rec = s.do(t, http.MethodDelete, "/book", `{"row":3,"column":"B","date":"2024-06-10"}`, mario, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/book", `{"row":3,"column":"B","date":"2024-06-10","chair":1}`, anna, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDelbookRequiresAdmin(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	mario := s.signupAndLogin(t, "mario@example.com", "3331234567")
	admin := s.signupAndLogin(t, "admin@example.com", "3339999999")

	rec := s.do(t, http.MethodPost, "/book", `{"row":1,"column":"A","date":"2024-06-10","chair":1}`, mario, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var e errBody
	rec = s.do(t, http.MethodGet, "/delbook", "", mario, &e)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", e.Code)

	var out struct {
		Cleared int64 `json:"cleared"`
	}
	rec = s.do(t, http.MethodGet, "/delbook", "", admin, &out)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), out.Cleared)

	var booked []model.BookingView
	s.do(t, http.MethodGet, "/booked", "", mario, &booked)
	assert.Empty(t, booked)
}

func TestDelbookPurgesCache(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	mario := s.signupAndLogin(t, "mario@example.com", "3331234567")
	admin := s.signupAndLogin(t, "admin@example.com", "3339999999")

	rec := s.do(t, http.MethodPost, "/book", `{"row":1,"column":"A","date":"2024-06-10","chair":1}`, mario, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, s.purges.Load())

	rec = s.do(t, http.MethodGet, "/delbook", "", mario, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.EqualValues(t, 1, s.purges.Load())

	rec = s.do(t, http.MethodGet, "/delbook", "", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, s.purges.Load())
}

func TestCardCheckout(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	mario := s.signupAndLogin(t, "mario@example.com", "3331234567")

	s.card.On("CreateIntent", int64(1000), "eur").Return(payment.Intent{ID: "pi_1", ClientSecret: "cs_1"}, nil)
	s.card.On("UpdateIntent", "pi_1", int64(1500)).Return(payment.Intent{ID: "pi_1", ClientSecret: "cs_1", Amount: 1500}, nil)
	s.card.On("IntentStatus", "pi_1").Return(payment.CardSucceeded, nil)

	var e errBody
	rec := s.do(t, http.MethodPost, "/checkout", `{"row":5,"column":"C","date":"2024-07-01","chair":2}`, mario, &e)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "NoPendingPayment", e.Code)

	var init struct {
		ClientSecret string `json:"clientSecret"`
	}
	rec = s.do(t, http.MethodGet, "/initpayment", "", mario, &init)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cs_1", init.ClientSecret)

	rec = s.do(t, http.MethodPost, "/checkout", `{"row":5,"column":"C","date":"2024-07-01","chair":2}`, mario, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view model.BookingView
	rec = s.do(t, http.MethodPost, "/confirm-stripe-payment", "", mario, &view)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "C", view.PlaceRow)
	assert.Equal(t, 5, view.PlaceIndex)

	rec = s.do(t, http.MethodPost, "/confirm-stripe-payment", "", mario, &e)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "NoPendingPayment", e.Code)
}

func TestWalletCaptureWhenSeatTaken(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	mario := s.signupAndLogin(t, "mario@example.com", "3331234567")
	admin := s.signupAndLogin(t, "admin@example.com", "3339999999")

	s.wallet.On("CreateOrder", int64(1000), "eur").Return(payment.Order{ID: "ord_1", Status: "CREATED"}, nil)
	s.wallet.On("CaptureOrder", "ord_1").Return(payment.Capture{ID: "ord_1", Status: payment.WalletCompleted}, nil)

	var order payment.Order
	rec := s.do(t, http.MethodPost, "/paypal-checkout", `{"row":9,"column":"J","date":"2024-08-01","chair":1}`, mario, &order)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ord_1", order.ID)

	_, err := s.ledger.CreateBooking(context.Background(), model.Customer{ID: "someone"},
		model.Draft{Row: "J", Index: 9, Date: "2024-08-01", Chairs: 1}, "")
	require.NoError(t, err)

	var e errBody
	rec = s.do(t, http.MethodPost, "/paypal-buy", `{"orderID":"ord_1"}`, mario, &e)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ChargedButUnbooked", e.Code)
	assert.Equal(t, "SeatAlreadyBooked", e.Cause)
	require.NotEmpty(t, e.RefundID)

	var refunds []struct {
		ID         string `json:"id"`
		ExternalID string `json:"externalId"`
	}
	rec = s.do(t, http.MethodGet, "/admin/refunds", "", admin, &refunds)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, refunds, 1)
	assert.Equal(t, e.RefundID, refunds[0].ID)
	assert.Equal(t, "ord_1", refunds[0].ExternalID)
}

func TestWalletOrderMismatchConflicts(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	mario := s.signupAndLogin(t, "mario@example.com", "3331234567")

	s.wallet.On("CreateOrder", int64(1000), "eur").Return(payment.Order{ID: "ord_1", Status: "CREATED"}, nil)

	rec := s.do(t, http.MethodPost, "/paypal-checkout", `{"row":2,"column":"C","date":"2024-08-01","chair":1}`, mario, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var e errBody
	rec = s.do(t, http.MethodPost, "/paypal-buy", `{"orderID":"ord_other"}`, mario, &e)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "OrderMismatch", e.Code)
	s.wallet.AssertNotCalled(t, "CaptureOrder", mock.Anything)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	var out map[string]string
	rec := s.do(t, http.MethodGet, "/healthz", "", nil, &out)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["db"])
}
