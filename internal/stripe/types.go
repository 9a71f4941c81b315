package stripe

import "encoding/json"

// PaymentIntent — подмножество полей ответа /v1/payment_intents.
type PaymentIntent struct {
	ID           string            `json:"id"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Status       string            `json:"status"`
	ClientSecret string            `json:"client_secret"`
	Metadata     map[string]string `json:"metadata"`
}

// CheckoutSession — подмножество полей ответа /v1/checkout/sessions.
type CheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

// Requirements — невыполненные требования Connect аккаунта.
type Requirements struct {
	CurrentlyDue  []string `json:"currently_due"`
	EventuallyDue []string `json:"eventually_due"`
	PastDue       []string `json:"past_due"`
}

// Account — подмножество полей ответа /v1/accounts.
type Account struct {
	ID               string        `json:"id"`
	Type             string        `json:"type"`
	Email            string        `json:"email"`
	ChargesEnabled   bool          `json:"charges_enabled"`
	PayoutsEnabled   bool          `json:"payouts_enabled"`
	DetailsSubmitted bool          `json:"details_submitted"`
	Requirements     *Requirements `json:"requirements"`
}

// AccountLink — одноразовая ссылка онбординга Express аккаунта.
type AccountLink struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
}

// Transfer — подмножество полей ответа /v1/transfers.
type Transfer struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Destination string `json:"destination"`
	Created     int64  `json:"created"`
}

// Refund — подмножество полей ответа /v1/refunds.
type Refund struct {
	ID            string `json:"id"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	PaymentIntent string `json:"payment_intent"`
}

// ExternalAccount — привязанный банковский счёт Connect аккаунта.
type ExternalAccount struct {
	ID       string `json:"id"`
	Object   string `json:"object"`
	Last4    string `json:"last4"`
	BankName string `json:"bank_name"`
}

// Charge — подмножество полей объекта charge в событии charge.refunded.
type Charge struct {
	ID             string `json:"id"`
	PaymentIntent  string `json:"payment_intent"`
	Amount         int64  `json:"amount"`
	AmountRefunded int64  `json:"amount_refunded"`
	Refunded       bool   `json:"refunded"`
	Currency       string `json:"currency"`
}

// Event — событие вебхука. Data.Object остаётся сырым JSON: конкретный
// обработчик знает, во что его распаковывать.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
	Created int64 `json:"created"`
}

// APIError — тело ошибки Stripe API.
type APIError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return "stripe: " + e.Code + ": " + e.Message
	}
	return "stripe: " + e.Message
}
