package phonepe

// payRequest is the decoded payload of the pay call, sent base64-encoded.
type payRequest struct {
	MerchantID            string            `json:"merchantId"`
	MerchantTransactionID string            `json:"merchantTransactionId"`
	MerchantUserID        string            `json:"merchantUserId"`
	Amount                int64             `json:"amount"` // paise
	RedirectURL           string            `json:"redirectUrl"`
	RedirectMode          string            `json:"redirectMode"`
	CallbackURL           string            `json:"callbackUrl"`
	PaymentInstrument     paymentInstrument `json:"paymentInstrument"`
}

type paymentInstrument struct {
	Type string `json:"type"`
}

type payAPIResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MerchantID            string `json:"merchantId"`
		MerchantTransactionID string `json:"merchantTransactionId"`
		InstrumentResponse    struct {
			Type         string `json:"type"`
			RedirectInfo struct {
				URL    string `json:"url"`
				Method string `json:"method"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	} `json:"data"`
}

type statusAPIResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MerchantID            string `json:"merchantId"`
		MerchantTransactionID string `json:"merchantTransactionId"`
		TransactionID         string `json:"transactionId"`
		Amount                int64  `json:"amount"`
		State                 string `json:"state"`
		ResponseCode          string `json:"responseCode"`
	} `json:"data"`
}

// PaymentSession is the result of initiating a payment: the URL the
// customer is redirected to, keyed by our transaction ID.
type PaymentSession struct {
	MerchantTransactionID string
	RedirectURL           string
}

// PaymentState is the gateway's view of a transaction.
type PaymentState string

const (
	StateCompleted PaymentState = "COMPLETED"
	StateFailed    PaymentState = "FAILED"
	StatePending   PaymentState = "PENDING"
)

// StatusResult is the outcome of a status check.
type StatusResult struct {
	MerchantTransactionID string
	GatewayTransactionID  string
	State                 PaymentState
	Amount                int64 // paise
	ResponseCode          string
}

// CallbackPayload is the decoded body of a server-to-server callback.
type CallbackPayload struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Data    struct {
		MerchantID            string `json:"merchantId"`
		MerchantTransactionID string `json:"merchantTransactionId"`
		TransactionID         string `json:"transactionId"`
		Amount                int64  `json:"amount"`
		State                 string `json:"state"`
	} `json:"data"`
}
