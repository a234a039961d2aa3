package server

import (
	"time"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/db/models"
)

// principalResponse is the wire form of a principal record.
type principalResponse struct {
	ID          string     `json:"id"`
	ExternalID  string     `json:"externalId"`
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName"`
	AvatarURL   string     `json:"avatarUrl"`
	Role        auth.Role  `json:"role"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
	PhoneNumber string     `json:"phoneNumber"`
	Favorites   []string   `json:"favorites"`
}

func toPrincipalResponse(p *models.Principal) principalResponse {
	favorites := p.Favorites
	if favorites == nil {
		favorites = []string{}
	}
	return principalResponse{
		ID:          p.ID,
		ExternalID:  p.ExternalID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Role:        p.Role,
		CreatedAt:   p.CreatedAt,
		LastLoginAt: p.LastLoginAt,
		PhoneNumber: p.PhoneNumber,
		Favorites:   favorites,
	}
}

// callerResponse is the context principal as echoed by /api/protected.
type callerResponse struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"externalId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        auth.Role `json:"role"`
}

func toCallerResponse(p auth.Principal) callerResponse {
	return callerResponse{
		ID:          p.ID,
		ExternalID:  p.ExternalID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Role:        p.Role,
	}
}

type favoritesResponse struct {
	Message   string   `json:"message"`
	Favorites []string `json:"favorites"`
}

type usersResponse struct {
	Users []principalResponse `json:"users"`
	Count int                 `json:"count"`
}

type setRoleRequest struct {
	Role string `json:"role"`
}

type healthResponse struct {
	Status           string    `json:"status"`
	Database         string    `json:"database"`
	IdentityProvider string    `json:"identityProvider"`
	Timestamp        time.Time `json:"timestamp"`
}

type messageResponse struct {
	Message string          `json:"message"`
	User    *callerResponse `json:"user,omitempty"`
}
