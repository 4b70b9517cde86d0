package phonepe

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aabhushan/aabhushan-backend/config"
	"github.com/aabhushan/aabhushan-backend/pkg/logger"
)

const (
	payPath    = "/pg/v1/pay"
	statusPath = "/pg/v1/status"
)

var (
	ErrPaymentRejected    = errors.New("payment rejected by gateway")
	ErrInvalidCallback    = errors.New("callback signature mismatch")
	ErrGatewayUnreachable = errors.New("payment gateway unreachable")
)

// Client talks to the PhonePe payment gateway. Requests carry a base64
// payload signed with the merchant salt key in the X-VERIFY header.
type Client struct {
	merchantID  string
	saltKey     string
	saltIndex   string
	baseURL     string
	redirectURL string
	callbackURL string
	httpClient  *http.Client
}

func NewClient(cfg *config.PhonePeConfig) *Client {
	return &Client{
		merchantID:  cfg.MerchantID,
		saltKey:     cfg.SaltKey,
		saltIndex:   cfg.SaltIndex,
		baseURL:     cfg.BaseURL,
		redirectURL: cfg.RedirectURL,
		callbackURL: cfg.CallbackURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// InitiatePayment opens a payment session and returns the redirect URL for
// the customer. Amount is in paise.
func (c *Client) InitiatePayment(ctx context.Context, merchantTxnID string, userID uint, amountPaise int64) (*PaymentSession, error) {
	logger.Info("Initiating payment session", map[string]interface{}{
		"merchant_txn_id": merchantTxnID,
		"amount_paise":    amountPaise,
	})

	payload := payRequest{
		MerchantID:            c.merchantID,
		MerchantTransactionID: merchantTxnID,
		MerchantUserID:        fmt.Sprintf("USER%d", userID),
		Amount:                amountPaise,
		RedirectURL:           c.redirectURL,
		RedirectMode:          "REDIRECT",
		CallbackURL:           c.callbackURL,
		PaymentInstrument:     paymentInstrument{Type: "PAY_PAGE"},
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(raw)

	body, err := json.Marshal(map[string]string{"request": encoded})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+payPath, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", c.sign(encoded+payPath))

	var apiResp payAPIResponse
	if err := c.do(req, &apiResp); err != nil {
		return nil, err
	}

	if !apiResp.Success {
		logger.Warn("Payment session rejected", map[string]interface{}{
			"merchant_txn_id": merchantTxnID,
			"code":            apiResp.Code,
		})
		return nil, fmt.Errorf("%w: %s", ErrPaymentRejected, apiResp.Code)
	}

	return &PaymentSession{
		MerchantTransactionID: merchantTxnID,
		RedirectURL:           apiResp.Data.InstrumentResponse.RedirectInfo.URL,
	}, nil
}

// CheckStatus queries the gateway for a transaction's current state.
func (c *Client) CheckStatus(ctx context.Context, merchantTxnID string) (*StatusResult, error) {
	path := fmt.Sprintf("%s/%s/%s", statusPath, c.merchantID, merchantTxnID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", c.sign(path))
	req.Header.Set("X-MERCHANT-ID", c.merchantID)

	var apiResp statusAPIResponse
	if err := c.do(req, &apiResp); err != nil {
		return nil, err
	}

	return &StatusResult{
		MerchantTransactionID: apiResp.Data.MerchantTransactionID,
		GatewayTransactionID:  apiResp.Data.TransactionID,
		State:                 PaymentState(apiResp.Data.State),
		Amount:                apiResp.Data.Amount,
		ResponseCode:          apiResp.Data.ResponseCode,
	}, nil
}

// VerifyCallback checks the X-VERIFY header against the base64 body and
// decodes the payload. The body is the raw "response" field of the POST.
func (c *Client) VerifyCallback(encodedBody, xVerify string) (*CallbackPayload, error) {
	if c.sign(encodedBody) != xVerify {
		logger.Warn("Payment callback signature mismatch", nil)
		return nil, ErrInvalidCallback
	}

	raw, err := base64.StdEncoding.DecodeString(encodedBody)
	if err != nil {
		return nil, ErrInvalidCallback
	}

	var payload CallbackPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrInvalidCallback
	}
	return &payload, nil
}

// sign computes the X-VERIFY checksum: sha256(data + saltKey) + "###" + index.
func (c *Client) sign(data string) string {
	sum := sha256.Sum256([]byte(data + c.saltKey))
	return hex.EncodeToString(sum[:]) + "###" + c.saltIndex
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("Payment gateway request failed", err, map[string]interface{}{
			"url": req.URL.String(),
		})
		return fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrGatewayUnreachable, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}
