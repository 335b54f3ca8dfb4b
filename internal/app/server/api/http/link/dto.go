package link

import "time"

type createSessionOutput struct {
	Body CreateSessionResponse
}

type CreateSessionResponse struct {
	SessionToken string    `json:"session_token"`
	Expiry       time.Time `json:"expiry"`
	Status       string    `json:"status"`
}

type establishInput struct {
	Body EstablishRequest
}

type EstablishRequest struct {
	PublicToken string `json:"public_token" minLength:"1" doc:"Single-use token returned by the link flow"`
	Institution string `json:"institution" maxLength:"128" doc:"Institution display name"`
}

type establishOutput struct {
	Body EstablishResponse
}

type EstablishResponse struct {
	ConnectionID int64  `json:"connection_id"`
	Status       string `json:"status"`
}
