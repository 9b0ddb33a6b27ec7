// Package models contains the request and response bodies of the
// shortener REST API, together with the validation tags applied on the
// client before anything leaves the process.
package models

import "time"

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the body of POST /auth/register. ConfirmPassword
// never leaves the client; it exists only for the equality check.
type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"-" validate:"eqfield=Password"`
}

// AuthResponse is the success body of both auth endpoints: the bearer
// token plus the user fields, flattened.
type AuthResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Plan  string `json:"plan"`
}

// Link is the link aggregate as served by the API. The client passes it
// through without caching or revalidating it.
type Link struct {
	ID          string     `json:"id"`
	OriginalURL string     `json:"originalUrl"`
	ShortURL    string     `json:"shortUrl"`
	ShortCode   string     `json:"shortCode,omitempty"`
	ClickCount  int64      `json:"clickCount"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// CreateLinkRequest is the body of POST /links.
type CreateLinkRequest struct {
	OriginalURL string     `json:"originalUrl" validate:"required,url"`
	CustomAlias string     `json:"customAlias,omitempty" validate:"omitempty,alias"`
	Password    string     `json:"password,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	IsActive    bool       `json:"isActive"`
}

// UpdateLinkRequest is the body of PUT /links/{id}. Nil fields are
// omitted so the server applies a partial update.
type UpdateLinkRequest struct {
	OriginalURL *string    `json:"originalUrl,omitempty" validate:"omitempty,url"`
	CustomAlias *string    `json:"customAlias,omitempty" validate:"omitempty,alias"`
	Password    *string    `json:"password,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	IsActive    *bool      `json:"isActive,omitempty"`
}

// DateClicks is one point of the clicks-by-date series.
type DateClicks struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// DeviceShare is one slice of the device distribution.
type DeviceShare struct {
	Device string `json:"device"`
	Clicks int64  `json:"clicks"`
}

// ClickDetail is one row of the recent-clicks table.
type ClickDetail struct {
	ClickedAt  time.Time `json:"clickedAt"`
	IPAddress  string    `json:"ipAddress"`
	DeviceType string    `json:"deviceType"`
	Country    string    `json:"country,omitempty"`
}

// AnalyticsResponse is the body of GET /analytics/{linkId}.
type AnalyticsResponse struct {
	OriginalURL        string        `json:"originalUrl"`
	ShortURL           string        `json:"shortUrl"`
	CreatedAt          time.Time     `json:"createdAt"`
	IsActive           bool          `json:"isActive"`
	TotalClicks        int64         `json:"totalClicks"`
	ClicksByDate       []DateClicks  `json:"clicksByDate"`
	DeviceDistribution []DeviceShare `json:"deviceDistribution"`
	RecentClicks       []ClickDetail `json:"recentClicks"`
}

// APIErrorBody is the error envelope the server uses for non-2xx
// responses.
type APIErrorBody struct {
	Message string `json:"message"`
}
