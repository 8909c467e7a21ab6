package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"travel_marketplace/internal/controlcode"
	"travel_marketplace/internal/domain"
	"travel_marketplace/internal/gateway"
	"travel_marketplace/internal/identity"
	"travel_marketplace/internal/payment"
	"travel_marketplace/internal/privilege"
	"travel_marketplace/internal/signature"
	"travel_marketplace/internal/store"
	"travel_marketplace/internal/testutil"
	"travel_marketplace/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	jwtSecret     = "jwt-secret"
	webhookSecret = "webhook-secret"
)

// fakeGateway serves /v1/payments/{id} from a map
type fakeGateway struct {
	mu      sync.Mutex
	details map[string]map[string]any
	hits    atomic.Int32
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.hits.Add(1)
	id := strings.TrimPrefix(r.URL.Path, "/v1/payments/")
	g.mu.Lock()
	detail, ok := g.details[id]
	g.mu.Unlock()
	if !ok || r.Header.Get("Authorization") != "Bearer gw-token" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(detail)
}

func (g *fakeGateway) set(id, status, ref, txType string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.details[id] = map[string]any{
		"id":                 json.Number(id),
		"status":             status,
		"external_reference": ref,
		"metadata":           map[string]any{"transaction_type": txType},
	}
}

type server struct {
	router   *gin.Engine
	accDB    *gorm.DB
	idDB     *gorm.DB
	accounts *store.AccountStore
	identity *identity.Provider
	gateway  *fakeGateway
	hook     *test.Hook
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, hook := test.NewNullLogger()

	accDB := testutil.NewDB(t)
	idDB := testutil.NewDB(t)
	accounts := store.NewAccountStore(accDB, 5*time.Second)
	provider := identity.NewProvider(idDB, jwtSecret, 5*time.Second)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	gw := &fakeGateway{details: map[string]map[string]any{}}
	gwServer := httptest.NewServer(gw)
	t.Cleanup(gwServer.Close)

	deps := Deps{
		Accounts:   accounts,
		Identity:   provider,
		Verifier:   signature.NewVerifier(webhookSecret, 300*time.Second, log),
		Reconciler: payment.NewReconciler(gateway.NewClient(gwServer.URL, "gw-token", 2*time.Second), accounts, provider, log),
		Issuer:     controlcode.NewIssuer(accounts, utils.NewReserver(rdb, "controlcode:reserve:", 30*time.Second), log),
		Guard:      privilege.NewGuard(accounts, provider, utils.NewLocker(rdb, 5*time.Second), log),
		JWTSecret:  jwtSecret,
		Log:        log,
	}
	return &server{
		router:   NewRouter(deps),
		accDB:    accDB,
		idDB:     idDB,
		accounts: accounts,
		identity: provider,
		gateway:  gw,
		hook:     hook,
	}
}

// seed creates an account together with its identity
func (s *server) seed(t *testing.T, id string, variant domain.Variant, role domain.Role) {
	t.Helper()
	acc := testutil.SeedAccount(t, s.accDB, id, variant, role)
	ctx := context.Background()
	require.NoError(t, s.identity.Provision(ctx, id, acc.Email, "password123", role))
	if role == domain.RoleAdmin {
		require.NoError(t, s.identity.SetClaims(ctx, id, domain.Claims{Role: role, Admin: true}))
	}
}

func (s *server) token(t *testing.T, id string) string {
	t.Helper()
	claims, err := s.identity.GetClaims(context.Background(), id)
	require.NoError(t, err)
	tok, err := utils.GenerateJWT(id, claims, jwtSecret)
	require.NoError(t, err)
	return tok
}

func (s *server) do(method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func signedHeaders(txID, requestID string) map[string]string {
	return map[string]string{
		"x-signature":  signature.Sign(webhookSecret, txID, requestID, time.Now().Unix()),
		"x-request-id": requestID,
	}
}

func TestWebhook_ApprovedUserSubscription(t *testing.T) {
	s := newServer(t)
	s.seed(t, "user123", domain.VariantTraveler, domain.RoleTraveler)
	s.gateway.set("98765", "approved", "user123", "user_subscription")

	w := s.do(http.MethodPost, "/webhooks/payments?topic=payment", "",
		`{"type":"payment","data":{"id":"98765"}}`, signedHeaders("98765", "req-1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "OK", decode(t, w)["status"])

	acc, err := s.accounts.Get(context.Background(), "user123")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTravelerElevated, acc.Role)
	assert.Equal(t, domain.PaymentPaid, acc.PaymentStatus)

	claims, err := s.identity.GetClaims(context.Background(), "user123")
	require.NoError(t, err)
	assert.Equal(t, domain.Claims{Role: domain.RoleTravelerElevated}, claims)

	// Redelivery converges on the same state
	w = s.do(http.MethodPost, "/webhooks/payments?type=payment", "",
		`{"id":98765}`, signedHeaders("98765", "req-2"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	again, err := s.accounts.Get(context.Background(), "user123")
	require.NoError(t, err)
	assert.Equal(t, acc.Role, again.Role)
	assert.Equal(t, acc.PaymentStatus, again.PaymentStatus)
}

func TestWebhook_ApprovedPartnerSubscription(t *testing.T) {
	s := newServer(t)
	s.seed(t, "partner9", domain.VariantPartner, domain.RolePartner)
	s.gateway.set("555", "approved", "partner9", "partner_subscription")

	w := s.do(http.MethodPost, "/webhooks/payments?topic=payment", "",
		`{"data":{"id":555}}`, signedHeaders("555", "req-1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	acc, err := s.accounts.Get(context.Background(), "partner9")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountApproved, acc.AccountStatus)
	assert.Equal(t, domain.PaymentPaid, acc.PaymentStatus)
}

func TestWebhook_ZeroDigestRejectedWithoutMutation(t *testing.T) {
	s := newServer(t)
	s.seed(t, "user123", domain.VariantTraveler, domain.RoleTraveler)
	s.gateway.set("98765", "approved", "user123", "user_subscription")

	header := "ts=" + strconv.FormatInt(time.Now().Unix(), 10) + ",v1=" + strings.Repeat("0", 64)
	w := s.do(http.MethodPost, "/webhooks/payments?topic=payment", "",
		`{"data":{"id":"98765"}}`, map[string]string{"x-signature": header, "x-request-id": "req-1"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ERROR", decode(t, w)["status"])

	acc, err := s.accounts.Get(context.Background(), "user123")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTraveler, acc.Role)
	assert.Equal(t, domain.PaymentNone, acc.PaymentStatus)
	assert.Zero(t, s.gateway.hits.Load())
}

func TestWebhook_RejectsUnsignedAndForeignSignatures(t *testing.T) {
	s := newServer(t)
	s.gateway.set("1", "approved", "user123", "user_subscription")

	cases := map[string]map[string]string{
		"no headers":    nil,
		"no request id": {"x-signature": signature.Sign(webhookSecret, "1", "req", time.Now().Unix())},
		"other secret":  {"x-signature": signature.Sign("nope", "1", "req", time.Now().Unix()), "x-request-id": "req"},
		"stale":         {"x-signature": signature.Sign(webhookSecret, "1", "req", time.Now().Add(-10*time.Minute).Unix()), "x-request-id": "req"},
		"other tx id":   signedHeaders("2", "req"),
		"other request": {"x-signature": signature.Sign(webhookSecret, "1", "req", time.Now().Unix()), "x-request-id": "req-x"},
	}
	for name, headers := range cases {
		t.Run(name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/webhooks/payments?topic=payment", "", `{"data":{"id":"1"}}`, headers)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Zero(t, s.gateway.hits.Load())
}

func TestWebhook_IgnoredAndNotApproved(t *testing.T) {
	s := newServer(t)
	s.seed(t, "user123", domain.VariantTraveler, domain.RoleTraveler)

	w := s.do(http.MethodPost, "/webhooks/payments?topic=merchant_order", "", `{"data":{"id":"1"}}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ignored", decode(t, w)["status"])
	require.NotNil(t, s.hook.LastEntry())
	assert.Equal(t, "webhook ignored", s.hook.LastEntry().Message)
	assert.Equal(t, "merchant_order", s.hook.LastEntry().Data["topic"])

	s.gateway.set("42", "rejected", "user123", "user_subscription")
	w = s.do(http.MethodPost, "/webhooks/payments?topic=payment", "", `{"data":{"id":"42"}}`, signedHeaders("42", "req"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", decode(t, w)["status"])

	acc, err := s.accounts.Get(context.Background(), "user123")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentNone, acc.PaymentStatus)

	w = s.do(http.MethodGet, "/webhooks/payments?topic=payment", "", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestWebhook_FailuresAreServerErrors(t *testing.T) {
	s := newServer(t)
	s.seed(t, "user123", domain.VariantTraveler, domain.RoleTraveler)
	s.gateway.set("10", "approved", "user123", "gift_card")
	s.gateway.set("11", "approved", "", "user_subscription")

	w := s.do(http.MethodPost, "/webhooks/payments?topic=payment", "", `{"data":{"id":"10"}}`, signedHeaders("10", "r"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, domain.ErrUnknownTransition.Error(), decode(t, w)["message"])

	w = s.do(http.MethodPost, "/webhooks/payments?topic=payment", "", `{"data":{"id":"11"}}`, signedHeaders("11", "r"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, domain.ErrMissingReference.Error(), decode(t, w)["message"])

	// Unknown to the gateway: transient, retried by the sender
	w = s.do(http.MethodPost, "/webhooks/payments?topic=payment", "", `{"data":{"id":"99"}}`, signedHeaders("99", "r"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "temporary failure, retry later", decode(t, w)["message"])
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodPost, "/auth/register", "", RegisterRequest{
		Email: "Ana@Example.com", Password: "password123", DisplayName: "Ana", Variant: "partner",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, _ := decode(t, w)["id"].(string)
	require.NotEmpty(t, id)

	w = s.do(http.MethodPost, "/auth/register", "", RegisterRequest{
		Email: "ana@example.com", Password: "password456", Variant: "traveler",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	var identities int64
	require.NoError(t, s.idDB.Model(&domain.Identity{}).Count(&identities).Error)
	assert.EqualValues(t, 1, identities)

	w = s.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "ana@example.com", Password: "wrong-pass"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "ana@example.com", Password: "password123"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tok, _ := decode(t, w)["token"].(string)
	require.NotEmpty(t, tok)

	w = s.do(http.MethodGet, "/auth/me", tok, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode(t, w)
	assert.Equal(t, id, me["id"])
	assert.Equal(t, "partner", me["role"])
	assert.Equal(t, "pending_payment", me["accountStatus"])
	assert.Nil(t, me["controlCode"])
	assert.NotContains(t, me, "needsReconciliation")
}

func TestAuth_RegisterValidation(t *testing.T) {
	s := newServer(t)
	bad := []RegisterRequest{
		{Email: "a@example.com", Password: "password123", Variant: "vendor"},
		{Email: "not-an-email", Password: "password123", Variant: "traveler"},
		{Email: "a@example.com", Password: "short", Variant: "traveler"},
	}
	for _, req := range bad {
		w := s.do(http.MethodPost, "/auth/register", "", req, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, req)
	}
}

func TestControlCode_IssueOverHTTP(t *testing.T) {
	s := newServer(t)
	s.seed(t, "t1", domain.VariantTraveler, domain.RoleTraveler)
	s.seed(t, "t2", domain.VariantTraveler, domain.RoleTraveler)
	s.seed(t, "boss", domain.VariantTraveler, domain.RoleAdmin)
	s.seed(t, "p1", domain.VariantPartner, domain.RolePartner)

	w := s.do(http.MethodPost, "/accounts/control-code", s.token(t, "t1"), ControlCodeRequest{AccountID: "t1", Variant: "traveler"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	code, _ := decode(t, w)["controlCode"].(string)
	assert.Regexp(t, `^TR-[0-9A-Z]{6}$`, code)

	w = s.do(http.MethodPost, "/accounts/control-code", s.token(t, "t1"), ControlCodeRequest{AccountID: "t1", Variant: "traveler"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, code, decode(t, w)["controlCode"])

	w = s.do(http.MethodPost, "/accounts/control-code", s.token(t, "t2"), ControlCodeRequest{AccountID: "t1", Variant: "traveler"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/accounts/control-code", s.token(t, "boss"), ControlCodeRequest{AccountID: "p1", Variant: "partner"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Regexp(t, `^PT-[0-9A-Z]{6}$`, decode(t, w)["controlCode"])

	w = s.do(http.MethodPost, "/accounts/control-code", s.token(t, "t2"), ControlCodeRequest{AccountID: "t2", Variant: "partner"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/accounts/control-code", "", ControlCodeRequest{AccountID: "t2", Variant: "traveler"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmin_GrantRevokeAndLastAdmin(t *testing.T) {
	s := newServer(t)
	s.seed(t, "root", domain.VariantTraveler, domain.RoleAdmin)
	s.seed(t, "ana", domain.VariantTraveler, domain.RoleTraveler)

	w := s.do(http.MethodGet, "/admin/admins", s.token(t, "ana"), nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	rootTok := s.token(t, "root")
	w = s.do(http.MethodPost, "/admin/grant", rootTok, GrantAdminRequest{Email: "ana@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["success"])

	claims, err := s.identity.GetClaims(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, domain.Claims{Role: domain.RoleAdmin, Admin: true}, claims)

	w = s.do(http.MethodGet, "/admin/admins", rootTok, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["admins"], 2)

	w = s.do(http.MethodPost, "/admin/revoke", rootTok, RevokeAdminRequest{TargetAccountID: "root"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	anaTok := s.token(t, "ana")
	w = s.do(http.MethodPost, "/admin/revoke", anaTok, RevokeAdminRequest{TargetAccountID: "root"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// root's token is stale but still says admin; ana is now the only admin
	w = s.do(http.MethodPost, "/admin/revoke", rootTok, RevokeAdminRequest{TargetAccountID: "ana"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	admins, err := s.accounts.ListAdmins(context.Background())
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "ana", admins[0].ID)
}

func TestAdmin_SetPartnerStatus(t *testing.T) {
	s := newServer(t)
	s.seed(t, "root", domain.VariantTraveler, domain.RoleAdmin)
	s.seed(t, "p1", domain.VariantPartner, domain.RolePartner)
	tok := s.token(t, "root")

	w := s.do(http.MethodPost, "/admin/partners/p1/status", tok, PartnerStatusRequest{AccountStatus: "suspended"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "suspended", decode(t, w)["accountStatus"])

	w = s.do(http.MethodPost, "/admin/partners/p1/status", tok, PartnerStatusRequest{AccountStatus: "frozen"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/admin/partners/nobody/status", tok, PartnerStatusRequest{AccountStatus: "approved"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
