package dbmock

import (
	"github.com/ukydev/fuel-delivery/internal/db"
	"github.com/ukydev/fuel-delivery/internal/models"
)

var (
	_ db.Repository[models.Vehicle] = (*Repository[models.Vehicle])(nil)
	_ db.OrderCollection            = (*OrderCollection)(nil)
	_ db.PaymentCollection          = (*PaymentCollection)(nil)
	_ db.DiscountCollection         = (*DiscountCollection)(nil)
	_ db.SubscriptionCollection     = (*SubscriptionCollection)(nil)
	_ db.PackageCollection          = (*PackageCollection)(nil)
	_ db.LocationCollection         = (*LocationCollection)(nil)
	_ db.DriverLocationCollection   = (*DriverLocationCollection)(nil)
	_ db.UserCollection             = (*UserCollection)(nil)
)
