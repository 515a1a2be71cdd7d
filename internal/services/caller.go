package services

import (
	"github.com/ukydev/fuel-delivery/internal/apperr"
	"github.com/ukydev/fuel-delivery/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Caller is the authenticated user a service call acts for.
type Caller struct {
	ID   primitive.ObjectID
	Role models.Role
}

// NewCaller builds a Caller from token claims.
func NewCaller(claims *models.Claims) (Caller, error) {
	if claims == nil {
		return Caller{}, apperr.Unauthorized("User not authenticated")
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return Caller{}, apperr.Unauthorized("invalid user in token")
	}
	return Caller{ID: id, Role: claims.Role}, nil
}

func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// Scope restricts queries to documents whose field equals the caller's id,
// unless the caller's role is one of seeAll. Admins always see everything.
func (c Caller) Scope(field string, seeAll ...models.Role) bson.M {
	if c.IsAdmin() {
		return nil
	}
	for _, r := range seeAll {
		if c.Role == r {
			return nil
		}
	}
	return bson.M{field: c.ID}
}
