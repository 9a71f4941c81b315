package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.stripe.com"

// Client — минимальный REST клиент Stripe API. Покрывает только те вызовы,
// которые нужны платформе: PaymentIntents, Checkout, Connect аккаунты,
// transfers и refunds. Stripe принимает form-encoded тело и Bearer авторизацию.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient создаёт экземпляр клиента.
func NewClient(secretKey string) *Client {
	return NewClientWithBaseURL(secretKey, defaultBaseURL)
}

// NewClientWithBaseURL создаёт клиента с переопределённым адресом API (для тестов).
func NewClientWithBaseURL(secretKey, baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreatePaymentIntentParams описывает параметры создания PaymentIntent.
type CreatePaymentIntentParams struct {
	Amount      int64
	Currency    string
	Description string
	Metadata    map[string]string
}

// CreatePaymentIntent создаёт PaymentIntent для оплаты чаевых картой.
func (c *Client) CreatePaymentIntent(ctx context.Context, p CreatePaymentIntentParams) (*PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(p.Amount, 10))
	form.Set("currency", currencyOrDefault(p.Currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	if p.Description != "" {
		form.Set("description", p.Description)
	}
	addMetadata(form, p.Metadata)

	var intent PaymentIntent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// GetPaymentIntent возвращает PaymentIntent по идентификатору.
func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	var intent PaymentIntent
	if err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+id, nil, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// CreateCheckoutSessionParams описывает параметры Checkout сессии покупки токенов.
type CreateCheckoutSessionParams struct {
	AmountCents int64
	ProductName string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CreateCheckoutSession создаёт Checkout сессию с одной позицией.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CreateCheckoutSessionParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(p.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", p.ProductName)
	addMetadata(form, p.Metadata)

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetCheckoutSession возвращает Checkout сессию по идентификатору.
func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+id, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CreateExpressAccount создаёт Connect Express аккаунт техника.
func (c *Client) CreateExpressAccount(ctx context.Context, email string, metadata map[string]string) (*Account, error) {
	form := url.Values{}
	form.Set("type", "express")
	form.Set("email", email)
	form.Set("capabilities[transfers][requested]", "true")
	addMetadata(form, metadata)

	var account Account
	if err := c.do(ctx, http.MethodPost, "/v1/accounts", form, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccount возвращает Connect аккаунт по идентификатору.
func (c *Client) GetAccount(ctx context.Context, id string) (*Account, error) {
	var account Account
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+id, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// DeleteAccount удаляет Connect аккаунт (используется при удалении пользователя).
func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/accounts/"+id, nil, nil)
}

// CreateAccountLink создаёт одноразовую ссылку онбординга Express аккаунта.
func (c *Client) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (*AccountLink, error) {
	form := url.Values{}
	form.Set("account", accountID)
	form.Set("refresh_url", refreshURL)
	form.Set("return_url", returnURL)
	form.Set("type", "account_onboarding")

	var link AccountLink
	if err := c.do(ctx, http.MethodPost, "/v1/account_links", form, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// AttachBankAccount привязывает банковский счёт к Connect аккаунту по токену
// (btok_...), полученному на фронте.
func (c *Client) AttachBankAccount(ctx context.Context, accountID, bankToken string) (*ExternalAccount, error) {
	form := url.Values{}
	form.Set("external_account", bankToken)

	var external ExternalAccount
	if err := c.do(ctx, http.MethodPost, "/v1/accounts/"+accountID+"/external_accounts", form, &external); err != nil {
		return nil, err
	}
	return &external, nil
}

// CreateTransfer переводит средства с платформы на Connect аккаунт техника.
func (c *Client) CreateTransfer(ctx context.Context, amount int64, destination string, metadata map[string]string) (*Transfer, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", "usd")
	form.Set("destination", destination)
	addMetadata(form, metadata)

	var transfer Transfer
	if err := c.do(ctx, http.MethodPost, "/v1/transfers", form, &transfer); err != nil {
		return nil, err
	}
	return &transfer, nil
}

// CreateRefund возвращает платёж целиком по идентификатору PaymentIntent.
func (c *Client) CreateRefund(ctx context.Context, paymentIntentID, reason string) (*Refund, error) {
	form := url.Values{}
	form.Set("payment_intent", paymentIntentID)
	if reason != "" {
		form.Set("reason", reason)
	}

	var refund Refund
	if err := c.do(ctx, http.MethodPost, "/v1/refunds", form, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

// do выполняет запрос к Stripe API и декодирует ответ в out.
func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	if c.secretKey == "" {
		return fmt.Errorf("stripe: секретный ключ не задан")
	}

	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stripe: запрос %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody struct {
			Error APIError `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil || errBody.Error.Message == "" {
			return fmt.Errorf("stripe: код ответа %d для %s %s", resp.StatusCode, method, path)
		}
		return &errBody.Error
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("stripe: не удалось разобрать ответ %s %s: %w", method, path, err)
	}
	return nil
}

func currencyOrDefault(currency string) string {
	if currency == "" {
		return "usd"
	}
	return strings.ToLower(currency)
}

func addMetadata(form url.Values, metadata map[string]string) {
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}
}
