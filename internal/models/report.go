package models

// Earnings is the payment earnings summary.
type Earnings struct {
	TotalEarnings float64          `json:"totalEarnings"`
	TodayEarnings float64          `json:"todayEarnings"`
	AllData       []PaymentDetails `json:"allData"`
}

// MonthBucket is a raw aggregation result keyed by calendar month (1-12).
type MonthBucket struct {
	Month int     `bson:"_id" json:"month"`
	Total float64 `bson:"total" json:"total"`
}

type MonthlyIncome struct {
	Month  string  `json:"month"`
	Income float64 `json:"income"`
}

type MonthlyUsers struct {
	Month string `json:"month"`
	Total int64  `json:"total"`
}

// Dashboard is the admin dashboard payload.
type Dashboard struct {
	TotalUsers           int64            `json:"totalUsers"`
	TotalCustomer        int64            `json:"totalCustomer"`
	TotalServiceProvider int64            `json:"totalServiceProvider"`
	TotalIncome          float64          `json:"totalIncome"`
	TransitionData       []PaymentDetails `json:"transitionData"`
	UserDetails          []UserSummary    `json:"userDetails"`
	MonthlyIncome        []MonthlyIncome  `json:"monthlyIncome"`
	MonthlyUsers         []MonthlyUsers   `json:"monthlyUsers"`
}
