package request

type CreateNotificationRequest struct {
	RecipientId string                 `json:"recipient_id"`
	SenderId    string                 `json:"sender_id"`
	Type        string                 `json:"type"`
	Payload     map[string]interface{} `json:"payload"`
	Channels    []string               `json:"channels"`
}
