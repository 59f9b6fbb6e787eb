package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/account"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/transfer"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeGateway реализует Gateway поверх Stripe.
type StripeGateway struct {
	webhookSecret string
	currency      stripe.Currency
}

// NewStripeGateway настраивает клиент Stripe.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{
		webhookSecret: webhookSecret,
		currency:      stripe.CurrencyRUB,
	}
}

// CreateCustomer создаёт запись покупателя в Stripe.
func (g *StripeGateway) CreateCustomer(ctx context.Context, userID string, email string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	c, err := customer.New(params)
	if err != nil {
		return "", classify(err)
	}
	return c.ID, nil
}

// CreateCharge создаёт платёж (PaymentIntent) на сумму депозита.
func (g *StripeGateway) CreateCharge(ctx context.Context, in ChargeInput) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toMinorUnits(in.Amount)),
		Currency: stripe.String(string(g.currency)),
		Customer: stripe.String(in.CustomerRef),
	}
	params.Context = ctx
	params.SetIdempotencyKey(in.IdempotencyKey)
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, classify(err)
	}
	return chargeResult(pi), nil
}

// GetCharge запрашивает текущий статус платежа.
func (g *StripeGateway) GetCharge(ctx context.Context, ref string) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(ref, params)
	if err != nil {
		return nil, classify(err)
	}
	return chargeResult(pi), nil
}

// CreateTransfer создаёт выплату на подключённый аккаунт исполнителя.
func (g *StripeGateway) CreateTransfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(toMinorUnits(in.Amount)),
		Currency:    stripe.String(string(g.currency)),
		Destination: stripe.String(in.AccountRef),
	}
	params.Context = ctx
	params.SetIdempotencyKey(in.IdempotencyKey)
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	t, err := transfer.New(params)
	if err != nil {
		return nil, classify(err)
	}
	return &TransferResult{Ref: t.ID, Created: true}, nil
}

// GetTransfer проверяет, существует ли выплата с данным идентификатором.
func (g *StripeGateway) GetTransfer(ctx context.Context, ref string) (*TransferResult, error) {
	params := &stripe.TransferParams{}
	params.Context = ctx

	t, err := transfer.Get(ref, params)
	if err != nil {
		return nil, classify(err)
	}
	return &TransferResult{Ref: t.ID, Created: false}, nil
}

// AccountStatus возвращает состояние подключённого аккаунта.
func (g *StripeGateway) AccountStatus(ctx context.Context, accountRef string) (*AccountStatus, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := account.GetByID(accountRef, params)
	if err != nil {
		return nil, classify(err)
	}
	return &AccountStatus{
		Verified:       acct.DetailsSubmitted,
		PayoutsEnabled: acct.PayoutsEnabled,
	}, nil
}

// VerifyWebhook проверяет подпись события и приводит его к внутреннему виду.
// Неизвестные типы событий возвращаются как EventIgnored, это не ошибка.
func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, &Error{Kind: KindCard, Message: "невалидная подпись вебхука", Err: err}
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
	default:
		return &WebhookEvent{Type: EventIgnored}, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("gateway: не удалось разобрать payload события: %w", err)
	}

	ev := &WebhookEvent{Ref: pi.ID}
	switch event.Type {
	case "payment_intent.succeeded":
		ev.Type = EventChargeSucceeded
	case "payment_intent.canceled":
		ev.Type = EventChargeCanceled
		ev.FailureReason = string(pi.CancellationReason)
	default:
		ev.Type = EventChargeFailed
		if pi.LastPaymentError != nil {
			ev.FailureReason = pi.LastPaymentError.Msg
		}
	}
	return ev, nil
}

// chargeResult приводит PaymentIntent к внутреннему результату.
func chargeResult(pi *stripe.PaymentIntent) *ChargeResult {
	res := &ChargeResult{Ref: pi.ID}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		res.Status = ChargeStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		res.Status = ChargeStatusCanceled
		res.FailureReason = string(pi.CancellationReason)
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			res.Status = ChargeStatusFailed
			res.FailureReason = pi.LastPaymentError.Msg
		} else {
			res.Status = ChargeStatusPending
		}
	default:
		res.Status = ChargeStatusPending
	}
	return res
}

// classify переводит ошибку Stripe в типизированную ошибку шлюза.
// Карточные ошибки и невалидные запросы пользователь должен исправить
// сам; всё остальное (сеть, 5xx, rate limit) отдаём retry sweeper'у.
func classify(err error) error {
	if stripeErr, ok := err.(*stripe.Error); ok {
		kind := KindTransient
		switch stripeErr.Type {
		case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest:
			kind = KindCard
		}
		return &Error{
			Kind:    kind,
			Code:    string(stripeErr.Code),
			Message: stripeErr.Msg,
			Err:     err,
		}
	}
	return &Error{Kind: KindTransient, Message: err.Error(), Err: err}
}

// toMinorUnits конвертирует рубли в копейки для шлюза.
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
