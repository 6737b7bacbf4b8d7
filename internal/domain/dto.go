package domain

import "context"

type RoleType string

const (
	RoleUser  RoleType = "user"
	RoleAdmin RoleType = "admin"
)

// Статусы, которые платежный шлюз возвращает для транзакций и возвратов.
const (
	GatewayStatusSuccess = "success"
	GatewayStatusPending = "pending"
)

// GatewayMessageFullyReversed сообщение шлюза при попытке вернуть уже полностью возвращенную транзакцию.
const GatewayMessageFullyReversed = "Transaction has been fully reversed"

// PaymentVerification результат проверки платежной транзакции. AmountMinor сумма в минимальных единицах валюты
// (копейки/кобо), как ее возвращает шлюз.
type PaymentVerification struct {
	Status      string
	AmountMinor int64
}

type RefundResult struct {
	Status string
}

// Mail письмо для отправки через Notifier.
type Mail struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// MailComposer собирает письмо непосредственно перед отправкой, например загружая адресата из базы.
type MailComposer func(ctx context.Context) (Mail, error)
