package dto

type SendMessageRequest struct {
	Recipient string `json:"recipient" binding:"required"`
	Message   string `json:"message"   binding:"required"`
	Signature string `json:"signature"`
}
