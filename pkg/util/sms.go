package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// MSG91 flow API request body
type smsFlowRequest struct {
	TemplateID string         `json:"template_id"`
	Sender     string         `json:"sender"`
	Recipients []smsRecipient `json:"recipients"`
}

type smsRecipient struct {
	Mobiles string `json:"mobiles"`
	OTP     string `json:"otp"`
}

// SendVerificationSMS sends a login code to the given phone number via MSG91.
// When the SMS credentials are not configured, the code is printed to the log
// instead so local development does not need a gateway account.
func SendVerificationSMS(authKey, senderID, templateID, phoneNumber, code string) error {
	if authKey == "" || senderID == "" || templateID == "" {
		log.Printf("================================")
		log.Printf("[dev mode] SMS gateway not configured")
		log.Printf("OTP for %s: %s", phoneNumber, code)
		log.Printf("(no SMS was actually sent)")
		log.Printf("================================")
		return nil
	}

	requestBody := smsFlowRequest{
		TemplateID: templateID,
		Sender:     senderID,
		Recipients: []smsRecipient{
			{
				Mobiles: phoneNumber,
				OTP:     code,
			},
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return fmt.Errorf("failed to encode SMS request: %w", err)
	}

	apiURL := url.URL{
		Scheme: "https",
		Host:   "control.msg91.com",
		Path:   "/api/v5/flow/",
	}

	req, err := http.NewRequest("POST", apiURL.String(), bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create SMS request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authkey", authKey)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read SMS response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		log.Printf("SMS gateway error response: %s", string(body))
		return fmt.Errorf("SMS send failed (status %d): %s", resp.StatusCode, string(body))
	}

	log.Printf("SMS sent: %s", phoneNumber)
	return nil
}
