package payos

import "encoding/json"

// Payment-link lifecycle statuses as reported by the gateway.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusPaid       = "PAID"
	StatusCancelled  = "CANCELLED"
	StatusExpired    = "EXPIRED"
)

// CheckoutRequest describes a payment link to create. OrderCode, Amount,
// Description, CancelURL and ReturnURL are required and are the only fields
// covered by the request signature; the rest are optional metadata.
type CheckoutRequest struct {
	OrderCode    int64  `json:"orderCode"`
	Amount       int64  `json:"amount"`
	Description  string `json:"description"`
	CancelURL    string `json:"cancelUrl"`
	ReturnURL    string `json:"returnUrl"`
	Items        []Item `json:"items,omitempty"`
	BuyerName    string `json:"buyerName,omitempty"`
	BuyerEmail   string `json:"buyerEmail,omitempty"`
	BuyerPhone   string `json:"buyerPhone,omitempty"`
	BuyerAddress string `json:"buyerAddress,omitempty"`
	ExpiredAt    *int64 `json:"expiredAt,omitempty"`
}

// missingFields reports the required field names that are absent, in the
// gateway's documented order.
func (r *CheckoutRequest) missingFields() []string {
	var missing []string
	if r.Amount == 0 {
		missing = append(missing, "amount")
	}
	if r.CancelURL == "" {
		missing = append(missing, "cancelUrl")
	}
	if r.Description == "" {
		missing = append(missing, "description")
	}
	if r.OrderCode == 0 {
		missing = append(missing, "orderCode")
	}
	if r.ReturnURL == "" {
		missing = append(missing, "returnUrl")
	}
	return missing
}

// Item is a line item attached to a checkout request.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

// CheckoutResponseData is the signed payload returned when a payment link is
// created.
type CheckoutResponseData struct {
	Bin           string `json:"bin"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
	Amount        int64  `json:"amount"`
	Description   string `json:"description"`
	OrderCode     int64  `json:"orderCode"`
	Currency      string `json:"currency"`
	PaymentLinkID string `json:"paymentLinkId"`
	Status        string `json:"status"`
	CheckoutURL   string `json:"checkoutUrl"`
	QRCode        string `json:"qrCode"`
}

// PaymentLinkData is the signed payload returned by the information and
// cancellation endpoints.
type PaymentLinkData struct {
	ID                 string        `json:"id"`
	OrderCode          int64         `json:"orderCode"`
	Amount             int64         `json:"amount"`
	AmountPaid         int64         `json:"amountPaid"`
	AmountRemaining    int64         `json:"amountRemaining"`
	Status             string        `json:"status"`
	CreatedAt          string        `json:"createdAt"`
	Transactions       []Transaction `json:"transactions"`
	CanceledAt         *string       `json:"canceledAt"`
	CancellationReason *string       `json:"cancellationReason"`
}

// Transaction is a single settled transfer against a payment link.
type Transaction struct {
	Reference              string  `json:"reference"`
	Amount                 int64   `json:"amount"`
	AccountNumber          string  `json:"accountNumber"`
	Description            string  `json:"description"`
	TransactionDateTime    string  `json:"transactionDateTime"`
	VirtualAccountName     *string `json:"virtualAccountName"`
	VirtualAccountNumber   *string `json:"virtualAccountNumber"`
	CounterAccountBankID   *string `json:"counterAccountBankId"`
	CounterAccountBankName *string `json:"counterAccountBankName"`
	CounterAccountName     *string `json:"counterAccountName"`
	CounterAccountNumber   *string `json:"counterAccountNumber"`
}

// Webhook is the envelope the gateway POSTs to a registered webhook URL.
// Data stays raw until its signature has been verified.
type Webhook struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

// WebhookData is the verified payload of a payment webhook.
type WebhookData struct {
	OrderCode              int64   `json:"orderCode"`
	Amount                 int64   `json:"amount"`
	Description            string  `json:"description"`
	AccountNumber          string  `json:"accountNumber"`
	Reference              string  `json:"reference"`
	TransactionDateTime    string  `json:"transactionDateTime"`
	Currency               string  `json:"currency"`
	PaymentLinkID          string  `json:"paymentLinkId"`
	Code                   string  `json:"code"`
	Desc                   string  `json:"desc"`
	CounterAccountBankID   *string `json:"counterAccountBankId"`
	CounterAccountBankName *string `json:"counterAccountBankName"`
	CounterAccountName     *string `json:"counterAccountName"`
	CounterAccountNumber   *string `json:"counterAccountNumber"`
	VirtualAccountName     *string `json:"virtualAccountName"`
	VirtualAccountNumber   *string `json:"virtualAccountNumber"`
}
