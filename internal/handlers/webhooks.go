package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tipcast/pkg/config"
	"tipcast/pkg/kafka"
	"tipcast/pkg/logging"
	"tipcast/pkg/middleware"
	"tipcast/pkg/models"
)

// providerWebhookPayload is the common shape the provider-specific webhook
// collaborators deliver after their own parsing.
type providerWebhookPayload struct {
	EventID   string `json:"event_id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// Provider status vocabularies mapped to the core's lifecycle signals.
var providerStatusMap = map[models.PaymentProvider]map[string]string{
	models.ProviderPix: {
		"ativa":                "pending",
		"concluida":            "paid",
		"devolvida":            "failed",
		"removida_pelo_psp":    "expired",
		"removida_por_usuario": "expired",
	},
	models.ProviderCard: {
		"pending":    "pending",
		"in_process": "pending",
		"approved":   "paid",
		"paid":       "paid",
		"declined":   "failed",
		"rejected":   "failed",
		"cancelled":  "expired",
		"expired":    "expired",
	},
	models.ProviderLightning: {
		"unpaid":   "pending",
		"pending":  "pending",
		"settled":  "paid",
		"paid":     "paid",
		"canceled": "failed",
		"expired":  "expired",
	},
}

func mapProviderStatus(provider models.PaymentProvider, status string) string {
	return providerStatusMap[provider][strings.ToLower(status)]
}

// verifyWebhookSignature verifies the collaborator's HMAC-SHA256 signature.
// Header format: t=timestamp,v1=signature with the signed payload being
// "timestamp.body". Timestamps older than 5 minutes are rejected.
func verifyWebhookSignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	elements := strings.Split(signature, ",")
	var timestamp string
	var signatures []string

	for _, element := range elements {
		parts := strings.SplitN(element, "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "t":
			timestamp = parts[1]
		case "v1":
			signatures = append(signatures, parts[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		logger.Error("Invalid webhook signature format: missing timestamp or signatures")
		return false
	}

	timestampInt, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		logger.WithFields(logging.Fields{
			"timestamp": timestamp,
			"error":     err,
		}).Error("Failed to parse webhook timestamp")
		return false
	}

	now := time.Now().Unix()
	if now-timestampInt > 300 {
		logger.WithFields(logging.Fields{
			"timestamp":   timestampInt,
			"age_seconds": now - timestampInt,
		}).Warn("Webhook timestamp too old")
		return false
	}

	signedPayload := timestamp + "." + string(payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	expectedSignature := hex.EncodeToString(mac.Sum(nil))

	for _, providedSig := range signatures {
		if hmac.Equal([]byte(expectedSignature), []byte(providedSig)) {
			return true
		}
	}

	return false
}

// HandleProviderWebhook handles POST /webhooks/:provider. The provider
// collaborator delivers at-least-once; the idempotency gate turns that into
// exactly-once settlement.
func HandleProviderWebhook(c middleware.Context) {
	provider := models.PaymentProvider(c.Param("provider"))
	if _, known := providerStatusMap[provider]; !known {
		c.JSON(http.StatusNotFound, middleware.H{"error": "Unknown provider"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "Failed to read body"})
		return
	}

	secret := config.GetEnv(strings.ToUpper(string(provider))+"_WEBHOOK_SECRET", "")
	if !verifyWebhookSignature(body, c.GetHeader("X-Webhook-Signature"), secret) {
		if metrics != nil {
			metrics.SignatureFailures.WithLabelValues(string(provider)).Inc()
		}
		logger.WithField("provider", provider).Warn("Webhook signature verification failed")
		c.JSON(http.StatusUnauthorized, middleware.H{"error": "Invalid signature"})
		return
	}

	var payload providerWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.PaymentID == "" {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "Invalid payload"})
		return
	}

	mapped := mapProviderStatus(provider, payload.Status)
	if mapped == "" {
		logger.WithFields(logging.Fields{
			"provider": provider,
			"status":   payload.Status,
		}).Debug("Ignoring unmapped provider status")
		c.JSON(http.StatusOK, middleware.H{"status": "ignored"})
		return
	}

	donation, err := findDonationByProviderPayment(provider, payload.PaymentID)
	if err != nil {
		if errors.Is(err, ErrDonationNotFound) {
			// The intake collaborator may not have attached the payment yet;
			// a non-2xx makes the provider retry later.
			c.JSON(http.StatusNotFound, middleware.H{"error": "Unknown payment"})
			return
		}
		logger.WithError(err).WithFields(logging.Fields{
			"provider":   provider,
			"payment_id": payload.PaymentID,
		}).Error("Failed to resolve donation for webhook")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Lookup failed"})
		return
	}

	if mapped == "pending" {
		if err := MarkDonationPending(donation.ID, payload.PaymentID); err != nil {
			logger.WithError(err).WithField("donation_id", donation.ID).Error("Failed to mark donation pending")
			c.JSON(http.StatusInternalServerError, middleware.H{"error": "Update failed"})
			return
		}
		c.JSON(http.StatusOK, middleware.H{"status": "pending"})
		return
	}

	eventKey := payload.PaymentID + "_" + mapped

	var settled *models.Donation
	alreadyProcessed, err := ProcessOnce(string(provider), eventKey, mapped, func(tx *sql.Tx) error {
		switch mapped {
		case "paid":
			var effectErr error
			settled, effectErr = HandleDonationPaid(tx, donation.ID)
			return effectErr
		case "failed":
			return HandleDonationFailed(tx, donation.ID)
		case "expired":
			return HandleDonationExpired(tx, donation.ID)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrAlreadyTerminal) {
			// A different event already terminated this donation; ack so the
			// provider stops retrying.
			c.JSON(http.StatusOK, middleware.H{"status": "ignored"})
			return
		}
		logger.WithError(err).WithFields(logging.Fields{
			"provider":    provider,
			"event_key":   eventKey,
			"donation_id": donation.ID,
		}).Error("Webhook effect failed")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Processing failed"})
		return
	}

	if alreadyProcessed {
		if metrics != nil {
			metrics.WebhookReplays.WithLabelValues(string(provider)).Inc()
		}
		c.JSON(http.StatusOK, middleware.H{"status": "ok", "already_processed": true})
		return
	}

	if metrics != nil {
		metrics.DonationsSettled.WithLabelValues(string(provider), mapped).Inc()
	}

	switch mapped {
	case "paid":
		RunSettlementFanout(settled)
	case "failed":
		emitDonationTerminated(donation, kafka.EventDonationFailed)
	case "expired":
		emitDonationTerminated(donation, kafka.EventDonationExpired)
	}

	c.JSON(http.StatusOK, middleware.H{"status": "ok"})
}
