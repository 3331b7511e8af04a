package payout

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type SubmitRequest struct {
	Reference     string            `json:"reference"`
	UserID        uint              `json:"user_id"`
	TransactionID uint              `json:"transaction_id"`
	Amount        Amount            `json:"amount"`
	Description   string            `json:"description,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type SubmitResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Reference string `json:"reference"`
}
