package models

import "strings"

// ContactMessage is a message sent through the public contact form
type ContactMessage struct {
	Name    string `json:"nombre" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Subject string `json:"asunto" validate:"omitempty,max=150"`
	Message string `json:"mensaje" validate:"required,min=10,max=5000"`
}

func (m *ContactMessage) Normalize() {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = NormalizeEmail(m.Email)
	m.Subject = strings.TrimSpace(m.Subject)
	m.Message = strings.TrimSpace(m.Message)
}
