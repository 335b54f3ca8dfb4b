package user

import "time"

type User struct {
	ID           int64
	Login        string
	PasswordHash string
	CreatedAt    time.Time
}

type BaseRequest struct {
	Login    string `json:"login" minLength:"3" maxLength:"64" doc:"Account login"`
	Password string `json:"password" minLength:"8" maxLength:"128" doc:"Account password"`
}
