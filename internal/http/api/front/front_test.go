package front

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prepwise/creditcore/internal/accounts"
	"github.com/prepwise/creditcore/internal/billing"
	"github.com/prepwise/creditcore/internal/cache"
	"github.com/prepwise/creditcore/internal/config"
	dbpkg "github.com/prepwise/creditcore/internal/db"
	"github.com/prepwise/creditcore/internal/purchases"
	"github.com/prepwise/creditcore/internal/referrals"
	"github.com/prepwise/creditcore/internal/security"
	"github.com/prepwise/creditcore/internal/settings"
)

const testSecret = "front-secret"

type fixture struct {
	store  *accounts.Store
	router *gin.Engine
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	settings.StoreDBConfig(time.Time{}, nil)
	conn, errOpen := dbpkg.Open(filepath.Join(t.TempDir(), "front.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	t.Cleanup(func() { _ = dbpkg.Close(conn) })

	store := accounts.NewStore(conn)
	catalog, errCatalog := billing.NewCatalog([]config.PackConfig{
		{ID: "pack_10", Credits: 10, PriceMinor: 999, Currency: "usd"},
		{ID: "pack_50", Credits: 50, PriceMinor: 3999, Currency: "usd"},
	})
	if errCatalog != nil {
		t.Fatalf("new catalog: %v", errCatalog)
	}
	router := gin.New()
	RegisterFrontRoutes(router, Dependencies{
		Accounts:  store,
		Purchases: purchases.NewTracker(conn, catalog),
		Referrals: referrals.NewService(conn, config.ReferralConfig{SignupBonus: 3, PayoutCredits: 5, PayoutTrigger: settings.PayoutTriggerFirstPurchase}),
		Catalog:   catalog,
		Profiles:  cache.NewMemory(time.Minute, 100),
		JWT:       config.JWTConfig{Secret: testSecret, Expiry: time.Hour},
	})
	return fixture{store: store, router: router}
}

func (f fixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, errDecode, w.Body.String())
		}
	}
	return w, resp
}

func (f fixture) login(t *testing.T, email, password string) string {
	t.Helper()
	w, resp := f.do(t, http.MethodPost, "/v0/front/login", "", gin.H{"email": email, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", email, w.Code, w.Body.String())
	}
	token, _ := resp["token"].(string)
	if token == "" {
		t.Fatalf("login %s: empty token", email)
	}
	return token
}

func TestRegisterLoginAndProfile(t *testing.T) {
	f := newFixture(t)

	w, resp := f.do(t, http.MethodPost, "/v0/front/register", "", gin.H{"email": "A@Example.com", "password": "correct horse"})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if _, hasReferralError := resp["referral_error"]; hasReferralError {
		t.Fatalf("unexpected referral_error without a code: %v", resp)
	}

	if w, _ := f.do(t, http.MethodPost, "/v0/front/register", "", gin.H{"email": "a@example.com", "password": "another pass"}); w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", w.Code)
	}
	if w, _ := f.do(t, http.MethodPost, "/v0/front/register", "", gin.H{"email": "b@example.com", "password": "short"}); w.Code != http.StatusBadRequest {
		t.Fatalf("weak password: expected 400, got %d", w.Code)
	}
	if w, _ := f.do(t, http.MethodPost, "/v0/front/login", "", gin.H{"email": "a@example.com", "password": "wrong horse"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", w.Code)
	}

	token := f.login(t, "a@example.com", "correct horse")
	w, profile := f.do(t, http.MethodGet, "/v0/front/profile", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d", w.Code)
	}
	if profile["balance"].(float64) != 0 || profile["email"] != "A@Example.com" {
		t.Fatalf("unexpected profile %v", profile)
	}
	if w, _ := f.do(t, http.MethodGet, "/v0/front/profile", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous profile: expected 401, got %d", w.Code)
	}
}

func TestRegisterWithReferralCode(t *testing.T) {
	f := newFixture(t)
	if w, _ := f.do(t, http.MethodPost, "/v0/front/register", "", gin.H{"email": "b@example.com", "password": "referrer pass"}); w.Code != http.StatusCreated {
		t.Fatalf("register referrer: %d", w.Code)
	}
	referrerToken := f.login(t, "b@example.com", "referrer pass")
	w, code := f.do(t, http.MethodPost, "/v0/front/referral-codes", referrerToken, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create code: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	referralCode := code["code"].(string)

	w, resp := f.do(t, http.MethodPost, "/v0/front/register", "", gin.H{"email": "c@example.com", "password": "referred pass", "referral_code": referralCode})
	if w.Code != http.StatusCreated {
		t.Fatalf("register referred: expected 201, got %d", w.Code)
	}
	if resp["balance"].(float64) != 3 {
		t.Fatalf("expected signup bonus 3, got %v", resp["balance"])
	}

	// A used code is reported but never blocks the signup.
	w, resp = f.do(t, http.MethodPost, "/v0/front/register", "", gin.H{"email": "d@example.com", "password": "another pass", "referral_code": referralCode})
	if w.Code != http.StatusCreated {
		t.Fatalf("register with used code: expected 201, got %d", w.Code)
	}
	if resp["referral_error"] != "referral code already redeemed" {
		t.Fatalf("expected referral_error, got %v", resp)
	}
	if resp["balance"].(float64) != 0 {
		t.Fatalf("expected no bonus, got %v", resp["balance"])
	}

	w, list := f.do(t, http.MethodGet, "/v0/front/referral-codes", referrerToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list codes: expected 200, got %d", w.Code)
	}
	codes := list["referral_codes"].([]any)
	if len(codes) != 1 || codes[0].(map[string]any)["redeemed"] != true {
		t.Fatalf("unexpected codes %v", codes)
	}
}

func TestSpendReturns402WhenCreditsExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account, errCreate := f.store.Create(ctx, "a@example.com", "correct horse")
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if _, errCredit := f.store.Credit(ctx, account.ID, 1, "admin-adjustment"); errCredit != nil {
		t.Fatalf("credit: %v", errCredit)
	}
	token, _ := security.GenerateToken(testSecret, account.ID, account.Email, time.Hour)

	w, resp := f.do(t, http.MethodPost, "/v0/front/spend", token, gin.H{"reason": "analyze-answer"})
	if w.Code != http.StatusOK || resp["balance"].(float64) != 0 {
		t.Fatalf("first spend: %d %v", w.Code, resp)
	}
	w, resp = f.do(t, http.MethodPost, "/v0/front/spend", token, gin.H{"reason": "analyze-answer"})
	if w.Code != http.StatusPaymentRequired || resp["error"] != "credits exhausted" {
		t.Fatalf("second spend: expected 402 credits exhausted, got %d %v", w.Code, resp)
	}
	if w, _ := f.do(t, http.MethodPost, "/v0/front/spend", token, gin.H{"reason": ""}); w.Code != http.StatusBadRequest {
		t.Fatalf("empty reason: expected 400, got %d", w.Code)
	}

	w, ledgerResp := f.do(t, http.MethodGet, "/v0/front/ledger?limit=10", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ledger: expected 200, got %d", w.Code)
	}
	entries := ledgerResp["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	if newest := entries[0].(map[string]any); newest["delta"].(float64) != -1 || newest["reason"] != "spend:analyze-answer" {
		t.Fatalf("unexpected newest entry %v", newest)
	}
	if w, _ := f.do(t, http.MethodGet, "/v0/front/ledger?limit=abc", token, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", w.Code)
	}
}

func TestPurchasesAreScopedToCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, _ := f.store.Create(ctx, "owner@example.com", "")
	other, _ := f.store.Create(ctx, "other@example.com", "")
	ownerToken, _ := security.GenerateToken(testSecret, owner.ID, owner.Email, time.Hour)
	otherToken, _ := security.GenerateToken(testSecret, other.ID, other.Email, time.Hour)

	w, packs := f.do(t, http.MethodGet, "/v0/front/packs", ownerToken, nil)
	if w.Code != http.StatusOK || len(packs["packs"].([]any)) != 2 {
		t.Fatalf("packs: %d %v", w.Code, packs)
	}

	w, created := f.do(t, http.MethodPost, "/v0/front/purchases", ownerToken, gin.H{"pack_id": "pack_10", "external_payment_id": "pi_1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create purchase: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if created["status"] != "pending" || created["credits_requested"].(float64) != 10 {
		t.Fatalf("unexpected purchase %v", created)
	}
	if created["external_payment_id"] != nil {
		t.Fatalf("caller-supplied payment id must be ignored, got %v", created["external_payment_id"])
	}
	path := "/v0/front/purchases/" + jsonNumber(created["id"])

	if w, _ := f.do(t, http.MethodGet, path, ownerToken, nil); w.Code != http.StatusOK {
		t.Fatalf("owner get: expected 200, got %d", w.Code)
	}
	if w, _ := f.do(t, http.MethodGet, path, otherToken, nil); w.Code != http.StatusNotFound {
		t.Fatalf("other get: expected 404, got %d", w.Code)
	}
	if w, _ := f.do(t, http.MethodPost, "/v0/front/purchases", ownerToken, gin.H{"pack_id": "pack_999"}); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown pack: expected 400, got %d", w.Code)
	}
	w, second := f.do(t, http.MethodPost, "/v0/front/purchases", otherToken, gin.H{"pack_id": "pack_10", "external_payment_id": "pi_1"})
	if w.Code != http.StatusCreated || second["external_payment_id"] != nil {
		t.Fatalf("second purchase: expected 201 without payment id, got %d %v", w.Code, second)
	}
}

func jsonNumber(v any) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}
