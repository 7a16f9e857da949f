package customer

import "time"

type Customer struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	Address      string    `json:"address,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterRequest payload of a new account.
// swagger:model RegisterRequest
type RegisterRequest struct {
	Name     string `json:"name"     validate:"required,min=2"  example:"Ana Souza"`
	Phone    string `json:"phone"    validate:"required,min=10" example:"11999999999"`
	Email    string `json:"email"    validate:"required,email"  example:"ana@example.com"`
	Address  string `json:"address"                             example:"Rua das Flores, 10"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest payload of authentication.
// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
