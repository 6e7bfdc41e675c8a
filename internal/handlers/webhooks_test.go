package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"tipcast/pkg/models"
)

func signatureHeader(payload []byte, secret string, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyWebhookSignature(t *testing.T) {
	setupTest(t)
	body := []byte(`{"payment_id":"p1","status":"concluida"}`)

	valid := signatureHeader(body, "secret", time.Now().Unix())
	if !verifyWebhookSignature(body, valid, "secret") {
		t.Error("expected valid signature to verify")
	}
	if verifyWebhookSignature(body, valid, "other-secret") {
		t.Error("expected wrong secret to fail")
	}

	stale := signatureHeader(body, "secret", time.Now().Add(-10*time.Minute).Unix())
	if verifyWebhookSignature(body, stale, "secret") {
		t.Error("expected stale timestamp to fail")
	}

	if verifyWebhookSignature(body, "", "secret") {
		t.Error("expected empty signature to fail")
	}
	if verifyWebhookSignature(body, valid, "") {
		t.Error("expected empty secret to fail")
	}
}

func TestMapProviderStatus(t *testing.T) {
	cases := []struct {
		provider models.PaymentProvider
		status   string
		want     string
	}{
		{models.ProviderPix, "CONCLUIDA", "paid"},
		{models.ProviderPix, "ativa", "pending"},
		{models.ProviderPix, "devolvida", "failed"},
		{models.ProviderCard, "approved", "paid"},
		{models.ProviderCard, "declined", "failed"},
		{models.ProviderCard, "expired", "expired"},
		{models.ProviderLightning, "settled", "paid"},
		{models.ProviderLightning, "expired", "expired"},
		{models.ProviderPix, "something_else", ""},
	}
	for _, tc := range cases {
		if got := mapProviderStatus(tc.provider, tc.status); got != tc.want {
			t.Errorf("%s/%s: expected %q, got %q", tc.provider, tc.status, tc.want, got)
		}
	}
}

func TestHandleProviderWebhookReplayAcks(t *testing.T) {
	mock := setupTest(t)
	t.Setenv("PIX_WEBHOOK_SECRET", "unit-test-secret")
	gin.SetMode(gin.TestMode)

	body := []byte(`{"event_id":"evt1","payment_id":"p1","status":"concluida"}`)
	sig := signatureHeader(body, "unit-test-secret", time.Now().Unix())

	mock.ExpectQuery("SELECT id, recipient_user_id").
		WithArgs("pix", "p1").
		WillReturnRows(donationRow("dn-1", "user-1", "PENDING"))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bursar.webhook_events").
		WithArgs("pix", "p1_paid", "paid").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	router := gin.New()
	router.POST("/webhooks/:provider", HandleProviderWebhook)

	req := httptest.NewRequest("POST", "/webhooks/pix", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", sig)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for replay, got %d (%s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "already_processed") {
		t.Errorf("expected replay acknowledgment, got %s", w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestHandleProviderWebhookRejectsBadSignature(t *testing.T) {
	setupTest(t)
	t.Setenv("PIX_WEBHOOK_SECRET", "unit-test-secret")
	gin.SetMode(gin.TestMode)

	body := []byte(`{"payment_id":"p1","status":"concluida"}`)

	router := gin.New()
	router.POST("/webhooks/:provider", HandleProviderWebhook)

	req := httptest.NewRequest("POST", "/webhooks/pix", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", "t=123,v1=deadbeef")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestHandleProviderWebhookUnknownProvider(t *testing.T) {
	setupTest(t)
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.POST("/webhooks/:provider", HandleProviderWebhook)

	req := httptest.NewRequest("POST", "/webhooks/paypal", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
