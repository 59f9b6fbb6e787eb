package gateway

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind разделяет ошибки шлюза на классы, от которых зависит
// дальнейшая судьба транзакции.
type ErrorKind string

const (
	// KindCard — проблема платёжного средства или аккаунта получателя.
	// Требует действий пользователя, автоматический ретрай запрещён.
	KindCard ErrorKind = "card"
	// KindTransient — сетевые ошибки и 5xx шлюза, безопасно ретраить.
	KindTransient ErrorKind = "transient"
)

// Error — типизированная ошибка шлюза. Потребители различают классы
// через errors.As, а не по тексту сообщения.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("gateway: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable сообщает, можно ли отдавать ошибку retry sweeper'у.
// Неизвестные ошибки считаем транзиентными: лишний запрос статуса
// безопаснее потерянной выплаты.
func IsRetryable(err error) bool {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind == KindTransient
	}
	return true
}

// Kind возвращает класс ошибки шлюза для записи в журнал транзакций.
func Kind(err error) ErrorKind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return KindTransient
}

// Статусы платежа на стороне шлюза.
type ChargeStatus string

const (
	ChargeStatusPending   ChargeStatus = "pending"
	ChargeStatusSucceeded ChargeStatus = "succeeded"
	ChargeStatusFailed    ChargeStatus = "failed"
	ChargeStatusCanceled  ChargeStatus = "canceled"
)

// ChargeInput описывает создание платежа (депозита).
// Amount в рублях; в минорные единицы конвертирует адаптер.
type ChargeInput struct {
	IdempotencyKey string
	CustomerRef    string
	Amount         float64
	Metadata       map[string]string
}

// ChargeResult — результат создания или запроса платежа.
type ChargeResult struct {
	Ref           string
	Status        ChargeStatus
	FailureReason string
}

// TransferInput описывает выплату на подключённый аккаунт исполнителя.
type TransferInput struct {
	IdempotencyKey string
	AccountRef     string
	Amount         float64
	Metadata       map[string]string
}

// TransferResult — результат создания или запроса выплаты.
type TransferResult struct {
	Ref     string
	Created bool
}

// AccountStatus — состояние подключённого аккаунта получателя выплат.
type AccountStatus struct {
	Verified       bool
	PayoutsEnabled bool
}

// Типы событий вебхука, которые обрабатывает reconciler.
type EventType string

const (
	EventChargeSucceeded EventType = "charge.succeeded"
	EventChargeFailed    EventType = "charge.failed"
	EventChargeCanceled  EventType = "charge.canceled"
	EventIgnored         EventType = "ignored"
)

// WebhookEvent — проверенное событие шлюза.
type WebhookEvent struct {
	Type          EventType
	Ref           string
	FailureReason string
}

// Gateway описывает внешний платёжный процессор. Каждый вызов,
// двигающий деньги, несёт идемпотентный ключ: повторный вызов с тем же
// ключом не создаёт второй эффект.
type Gateway interface {
	CreateCustomer(ctx context.Context, userID string, email string) (string, error)
	CreateCharge(ctx context.Context, in ChargeInput) (*ChargeResult, error)
	GetCharge(ctx context.Context, ref string) (*ChargeResult, error)
	CreateTransfer(ctx context.Context, in TransferInput) (*TransferResult, error)
	GetTransfer(ctx context.Context, ref string) (*TransferResult, error)
	AccountStatus(ctx context.Context, accountRef string) (*AccountStatus, error)
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
