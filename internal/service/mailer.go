package service

import (
	"context"
	"fmt"

	"github.com/thankatech/backend/internal/email"
	"github.com/thankatech/backend/internal/logger"
)

// Mailer собирает транзакционные письма платформы поверх почтового клиента.
// Если клиент не сконфигурирован, письма молча пропускаются (дев-окружение).
type Mailer struct {
	client  *email.Client
	baseURL string
}

// NewMailer создаёт сервис писем. baseURL — публичный адрес фронтенда.
func NewMailer(client *email.Client, baseURL string) *Mailer {
	return &Mailer{client: client, baseURL: baseURL}
}

// SendPasswordReset отправляет ссылку на сброс пароля.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, firstName, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.baseURL, token)
	msg := email.Message{
		To:      to,
		Subject: "Сброс пароля ThankATech",
		HTML: fmt.Sprintf(
			`<p>Здравствуйте, %s!</p><p>Чтобы задать новый пароль, перейдите по ссылке: <a href="%s">%s</a></p><p>Ссылка действует один час. Если вы не запрашивали сброс, проигнорируйте это письмо.</p>`,
			firstName, link, link),
	}
	return m.send(ctx, msg)
}

// SendTipReceived уведомляет техника о полученных чаевых.
func (m *Mailer) SendTipReceived(ctx context.Context, to, firstName string, amount int64, customerName string) error {
	if customerName == "" {
		customerName = "Клиент"
	}
	msg := email.Message{
		To:      to,
		Subject: "Вам оставили чаевые",
		HTML: fmt.Sprintf(
			`<p>%s, %s оставил вам чаевые на сумму $%.2f.</p><p>Сумма уже учтена в вашей выручке.</p>`,
			firstName, customerName, float64(amount)/100),
	}
	return m.send(ctx, msg)
}

// SendTokensReceived уведомляет техника о полученных TOA токенах.
func (m *Mailer) SendTokensReceived(ctx context.Context, to, firstName string, tokens int64) error {
	msg := email.Message{
		To:      to,
		Subject: "Вам отправили TOA токены",
		HTML: fmt.Sprintf(
			`<p>%s, вам отправили %d TOA токенов признательности. Очки уже начислены вашему профилю.</p>`,
			firstName, tokens),
	}
	return m.send(ctx, msg)
}

// SendPurchaseReceipt подтверждает покупателю зачисление купленных токенов.
func (m *Mailer) SendPurchaseReceipt(ctx context.Context, to, firstName string, tokens, amountCents int64) error {
	msg := email.Message{
		To:      to,
		Subject: "Покупка TOA токенов",
		HTML: fmt.Sprintf(
			`<p>%s, покупка на сумму $%.2f прошла успешно. %d TOA токенов зачислены на ваш баланс.</p>`,
			firstName, float64(amountCents)/100, tokens),
	}
	return m.send(ctx, msg)
}

// SendPayoutCreated уведомляет техника о созданной выплате.
func (m *Mailer) SendPayoutCreated(ctx context.Context, to, firstName string, netAmount int64) error {
	msg := email.Message{
		To:      to,
		Subject: "Выплата отправлена",
		HTML: fmt.Sprintf(
			`<p>%s, выплата на сумму $%.2f отправлена на ваш банковский счёт. Обычно зачисление занимает 1-2 рабочих дня.</p>`,
			firstName, float64(netAmount)/100),
	}
	return m.send(ctx, msg)
}

func (m *Mailer) send(ctx context.Context, msg email.Message) error {
	if m.client == nil || !m.client.Enabled() {
		if logger.Log != nil {
			logger.Log.WithField("to", msg.To).Debug("mailer: почтовый клиент не сконфигурирован, письмо пропущено")
		}
		return nil
	}
	_, err := m.client.Send(ctx, msg)
	return err
}
