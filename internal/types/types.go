// Code scaffolded by goctl. Safe to edit.
package types

import "time"

type LoginRequest struct {
	Username string `json:"usernameOrEmail"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	TokenType    string    `json:"tokenType"`
	AccessExpiry time.Time `json:"expiresAt"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	TokenType    string    `json:"tokenType"`
	AccessExpiry time.Time `json:"expiresAt"`
}

type MeResponse struct {
	UserID   string   `json:"userId"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	Scopes   []string `json:"scopes"`
}
