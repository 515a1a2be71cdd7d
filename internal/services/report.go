package services

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fuel-delivery/internal/apperr"
	"github.com/ukydev/fuel-delivery/internal/cache"
	"github.com/ukydev/fuel-delivery/internal/db"
	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	reportKeyPrefix   = "report:"
	earningsKey       = reportKeyPrefix + "earnings"
	recentPaymentsCap = 10
	recentUsersCap    = 15
)

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// ReportService builds the earnings summary and the admin dashboard.
type ReportService struct {
	Payments db.PaymentCollection
	Users    db.UserCollection
	Cache    cache.Cache
	TTL      time.Duration
	Now      func() time.Time
}

func NewReportService(payments db.PaymentCollection, users db.UserCollection, c cache.Cache, ttl time.Duration) *ReportService {
	if c == nil {
		c = cache.Nop{}
	}
	return &ReportService{
		Payments: payments,
		Users:    users,
		Cache:    c,
		TTL:      ttl,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReportService) cached(ctx context.Context, key string, dst interface{}) bool {
	hit, err := s.Cache.Get(ctx, key, dst)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("report cache read failed")
		return false
	}
	return hit
}

func (s *ReportService) store(ctx context.Context, key string, value interface{}) {
	if err := s.Cache.Set(ctx, key, value, s.TTL); err != nil {
		log.WithError(err).WithField("key", key).Warn("report cache write failed")
	}
}

// Invalidate drops every cached report.
func (s *ReportService) Invalidate(ctx context.Context) {
	if err := s.Cache.DeletePattern(ctx, reportKeyPrefix+"*"); err != nil {
		log.WithError(err).Warn("failed to invalidate report cache")
	}
}

// Earnings returns total and today's paid amounts with every paid payment.
func (s *ReportService) Earnings(ctx context.Context) (*models.Earnings, error) {
	var out models.Earnings
	if s.cached(ctx, earningsKey, &out) {
		return &out, nil
	}

	now := s.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	earnings, err := s.Payments.Earnings(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, storeError(err, "payment")
	}
	if earnings.AllData == nil {
		earnings.AllData = []models.PaymentDetails{}
	}
	s.store(ctx, earningsKey, earnings)
	return earnings, nil
}

func (s *ReportService) year(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.Now().Year(), nil
	}
	y, err := strconv.Atoi(raw)
	if err != nil || y < 1 {
		return 0, apperr.InvalidInput(fmt.Sprintf("invalid year %q", raw))
	}
	return y, nil
}

// Dashboard returns user counts, income totals and per-month series for
// incomeYear and joinYear. Empty years mean the current year.
func (s *ReportService) Dashboard(ctx context.Context, incomeYear, joinYear string) (*models.Dashboard, error) {
	iy, err := s.year(incomeYear)
	if err != nil {
		return nil, err
	}
	jy, err := s.year(joinYear)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%sdashboard:%d:%d", reportKeyPrefix, iy, jy)
	var out models.Dashboard
	if s.cached(ctx, key, &out) {
		return &out, nil
	}

	d := &models.Dashboard{}
	if d.TotalUsers, err = s.Users.CountUsers(ctx, bson.M{"status": models.StatusActive}); err != nil {
		return nil, storeError(err, "user")
	}
	if d.TotalCustomer, err = s.Users.CountUsers(ctx, bson.M{"role": models.RoleUser}); err != nil {
		return nil, storeError(err, "user")
	}
	if d.TotalServiceProvider, err = s.Users.CountUsers(ctx, bson.M{"role": models.RoleDriver}); err != nil {
		return nil, storeError(err, "user")
	}
	total, err := s.Payments.TotalPaid(ctx)
	if err != nil {
		return nil, storeError(err, "payment")
	}
	d.TotalIncome = round2(total)

	if d.TransitionData, err = s.Payments.RecentPaid(ctx, recentPaymentsCap); err != nil {
		return nil, storeError(err, "payment")
	}
	if d.UserDetails, err = s.Users.RecentUsers(ctx, recentUsersCap); err != nil {
		return nil, storeError(err, "user")
	}
	if d.TransitionData == nil {
		d.TransitionData = []models.PaymentDetails{}
	}
	if d.UserDetails == nil {
		d.UserDetails = []models.UserSummary{}
	}

	income, err := s.Payments.MonthlyIncome(ctx, iy)
	if err != nil {
		return nil, storeError(err, "payment")
	}
	signups, err := s.Users.MonthlySignups(ctx, jy)
	if err != nil {
		return nil, storeError(err, "user")
	}
	d.MonthlyIncome, d.MonthlyUsers = fillMonths(income, signups)

	s.store(ctx, key, d)
	return d, nil
}

// fillMonths spreads aggregation buckets over all twelve months, zero
// filling the months without data.
func fillMonths(income, signups []models.MonthBucket) ([]models.MonthlyIncome, []models.MonthlyUsers) {
	var incomeByMonth, usersByMonth [12]float64
	for _, b := range income {
		if b.Month >= 1 && b.Month <= 12 {
			incomeByMonth[b.Month-1] += b.Total
		}
	}
	for _, b := range signups {
		if b.Month >= 1 && b.Month <= 12 {
			usersByMonth[b.Month-1] += b.Total
		}
	}

	mi := make([]models.MonthlyIncome, 12)
	mu := make([]models.MonthlyUsers, 12)
	for i, name := range monthNames {
		mi[i] = models.MonthlyIncome{Month: name, Income: round2(incomeByMonth[i])}
		mu[i] = models.MonthlyUsers{Month: name, Total: int64(math.Round(usersByMonth[i]))}
	}
	return mi, mu
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ExportEarnings writes the paid payments as an xlsx workbook.
func (s *ReportService) ExportEarnings(ctx context.Context, w io.Writer) error {
	earnings, err := s.Earnings(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Earnings"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	headers := []string{"Transaction", "Amount", "Status", "Customer", "Email", "Package", "Date"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, p := range earnings.AllData {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), p.TranID)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), p.Amount)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), string(p.Status))
		if p.User != nil {
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), p.User.Name)
			f.SetCellValue(sheet, fmt.Sprintf("E%d", row), p.User.Email)
		}
		if p.Package != nil {
			f.SetCellValue(sheet, fmt.Sprintf("F%d", row), p.Package.Name)
		}
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), p.CreatedAt.Format("2006-01-02 15:04"))
	}

	total := len(earnings.AllData) + 3
	f.SetCellValue(sheet, fmt.Sprintf("A%d", total), "Total")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", total), earnings.TotalEarnings)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
