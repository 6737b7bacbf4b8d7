package paystack

// envelope общий формат ответа шлюза.
type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type verifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
}

type refundRequest struct {
	Transaction  string `json:"transaction"`
	CustomerNote string `json:"customer_note,omitempty"`
}

type refundData struct {
	Status string `json:"status"`
}
