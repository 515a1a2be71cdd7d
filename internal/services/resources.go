package services

import (
	"github.com/ukydev/fuel-delivery/internal/db"
	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/ukydev/fuel-delivery/internal/query"
)

var VehicleSpec = query.Spec{
	SearchFields: []string{"make", "model", "plateNumber", "color"},
	Filters: map[string]query.FieldKind{
		"fuelType": query.String,
		"year":     query.Number,
		"userId":   query.ObjectID,
	},
}

var DriverEarningSpec = query.Spec{
	SearchFields: []string{"note"},
	Filters: map[string]query.FieldKind{
		"userId":  query.ObjectID,
		"orderId": query.ObjectID,
	},
}

var QuestionSpec = query.Spec{
	SearchFields: []string{"text", "comment"},
	Filters: map[string]query.FieldKind{
		"orderId":    query.ObjectID,
		"driverId":   query.ObjectID,
		"answerType": query.String,
	},
}

var NotificationSpec = query.Spec{
	SearchFields: []string{"message", "description"},
	Filters: map[string]query.FieldKind{
		"isRead":    query.Bool,
		"modelType": query.String,
	},
}

var LocationSpec = query.Spec{
	SearchFields: []string{"name", "address"},
}

var PackageSpec = query.Spec{
	SearchFields: []string{"name", "description"},
	Filters: map[string]query.FieldKind{
		"durationDays": query.Number,
	},
}

var DiscountSpec = query.Spec{
	SearchFields: []string{"code"},
	Filters: map[string]query.FieldKind{
		"isUsed": query.Bool,
	},
}

func NewVehicleResource(store db.Repository[models.Vehicle]) *Resource[models.Vehicle, *models.Vehicle] {
	return NewResource[models.Vehicle, *models.Vehicle]("vehicle", store, VehicleSpec,
		"make", "model", "year", "plateNumber", "fuelType", "color")
}

func NewDriverEarningResource(store db.Repository[models.DriverEarning]) *Resource[models.DriverEarning, *models.DriverEarning] {
	return NewResource[models.DriverEarning, *models.DriverEarning]("driver earning", store, DriverEarningSpec,
		"amount", "note", "orderId")
}

func NewQuestionResource(store db.Repository[models.Question]) *Resource[models.Question, *models.Question] {
	return NewResource[models.Question, *models.Question]("question", store, QuestionSpec,
		"text", "answerType", "comment", "orderId", "driverId")
}

func NewNotificationResource(store db.Repository[models.Notification]) *Resource[models.Notification, *models.Notification] {
	return NewResource[models.Notification, *models.Notification]("notification", store, NotificationSpec, "isRead")
}

func NewLocationResource(store db.Repository[models.Location]) *Resource[models.Location, *models.Location] {
	return NewResource[models.Location, *models.Location]("location", store, LocationSpec, "name", "address")
}

func NewPackageResource(store db.Repository[models.Package]) *Resource[models.Package, *models.Package] {
	return NewResource[models.Package, *models.Package]("package", store, PackageSpec,
		"name", "description", "price", "durationDays")
}

func NewDiscountResource(store db.Repository[models.Discount]) *Resource[models.Discount, *models.Discount] {
	return NewResource[models.Discount, *models.Discount]("discount", store, DiscountSpec, "discount", "endDate")
}
