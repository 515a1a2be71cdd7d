package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
	"github.com/ukydev/fuel-delivery/internal/apperr"
	"github.com/ukydev/fuel-delivery/internal/models"
	"github.com/ukydev/fuel-delivery/internal/services"
)

const qrSize = 256

// PaymentHandler serves /payments, including the reports that are read from
// payment data.
type PaymentHandler struct {
	payments *services.PaymentService
	reports  *services.ReportService
}

func NewPaymentHandler(payments *services.PaymentService, reports *services.ReportService) *PaymentHandler {
	return &PaymentHandler{payments: payments, reports: reports}
}

func (h *PaymentHandler) checkout(r *http.Request) (*models.CheckoutResult, error) {
	caller, err := callerFrom(r)
	if err != nil {
		return nil, err
	}
	var req models.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	return h.payments.Checkout(r.Context(), caller, req)
}

// Checkout returns the hosted checkout session for a subscription or order.
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	result, err := h.checkout(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Checkout session created successfully", result)
}

// CheckoutQR is Checkout answered with a PNG QR code of the session URL.
func (h *PaymentHandler) CheckoutQR(w http.ResponseWriter, r *http.Request) {
	result, err := h.checkout(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	png, err := qrcode.Encode(result.URL, qrcode.Medium, qrSize)
	if err != nil {
		respondError(w, r, apperr.Wrap(apperr.KindInternal, "Failed to render QR code", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Payment-Id", result.PaymentID)
	w.Header().Set("X-Session-Id", result.SessionID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		log.WithError(err).Warn("failed to write QR code")
	}
}

// Confirm is called by the frontend after the gateway redirects the customer
// back to its success page with sessionId and paymentId.
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	payment, err := h.payments.Confirm(r.Context(), q.Get("sessionId"), q.Get("paymentId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Payment confirmed successfully", payment)
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	payment, err := h.payments.Get(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Payment retrieved successfully", payment)
}

func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdatePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	payment, err := h.payments.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Payment updated successfully", payment)
}

func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	payment, err := h.payments.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Payment deleted successfully", payment)
}

func (h *PaymentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page, err := h.payments.ListMine(r.Context(), caller, r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, "Payments retrieved successfully", page)
}

func (h *PaymentHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	page, err := h.payments.ListByUser(r.Context(), chi.URLParam(r, "userId"), r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, "Payments retrieved successfully", page)
}

// List returns paid payments, optionally limited to ?year=&month= (month 0-11).
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.payments.ListPaidInMonth(r.Context(), q.Get("year"), q.Get("month"), q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, "Payments retrieved successfully", page)
}

func (h *PaymentHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	earnings, err := h.reports.Earnings(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Earnings retrieved successfully", earnings)
}

func (h *PaymentHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	joinYear := q.Get("JoinYear")
	if joinYear == "" {
		joinYear = q.Get("joinYear")
	}
	dashboard, err := h.reports.Dashboard(r.Context(), q.Get("incomeYear"), joinYear)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Dashboard data retrieved successfully", dashboard)
}

// ExportEarnings streams the earnings report as an xlsx workbook.
func (h *PaymentHandler) ExportEarnings(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.reports.ExportEarnings(r.Context(), &buf); err != nil {
		respondError(w, r, err)
		return
	}
	name := fmt.Sprintf("earnings-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.WithError(err).Warn("failed to write earnings export")
	}
}
