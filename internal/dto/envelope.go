package dto

// Envelope wraps every API response.
// Error carries internal details and is only populated outside production.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK wraps data in a successful envelope.
func OK(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// Fail builds an error envelope.
func Fail(message string) Envelope {
	return Envelope{Success: false, Message: message}
}
