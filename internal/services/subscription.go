package services

import (
	"context"

	"github.com/ukydev/fuel-delivery/internal/apperr"
	"github.com/ukydev/fuel-delivery/internal/db"
	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/ukydev/fuel-delivery/internal/query"
	"github.com/ukydev/fuel-delivery/internal/validation"
)

// SubscriptionSpec is what subscription listings accept.
var SubscriptionSpec = query.Spec{
	Filters: map[string]query.FieldKind{
		"isPaid":    query.Bool,
		"isExpired": query.Bool,
		"package":   query.ObjectID,
		"user":      query.ObjectID,
	},
}

// SubscriptionService subscribes callers to packages. Reads and deletes go
// through the embedded Resource.
type SubscriptionService struct {
	*Resource[models.Subscription, *models.Subscription]
	Packages db.PackageCollection
}

func NewSubscriptionService(subs db.SubscriptionCollection, packages db.PackageCollection) *SubscriptionService {
	return &SubscriptionService{
		Resource: NewResource[models.Subscription, *models.Subscription]("subscription", subs, SubscriptionSpec),
		Packages: packages,
	}
}

// Subscribe creates an unpaid subscription of caller to a package, priced at
// the package price.
func (s *SubscriptionService) Subscribe(ctx context.Context, caller Caller, req models.CreateSubscriptionRequest) (*models.Subscription, error) {
	if err := validation.Struct(req); err != nil {
		return nil, apperr.InvalidInput(err.Error())
	}
	pkg, err := s.Packages.FindByID(ctx, req.Package)
	if err != nil {
		return nil, storeError(err, "package")
	}
	return s.Create(ctx, &models.Subscription{
		User:    caller.ID,
		Package: pkg.ID,
		Amount:  pkg.Price,
	})
}
