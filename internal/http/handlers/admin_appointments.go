package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/jparrish/portfolio-platform/pkg/logging"
)

// AdminAppointmentsHandler serves the admin read-only view of bookings.
type AdminAppointmentsHandler struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewAdminAppointmentsHandler creates a new admin appointments handler.
func NewAdminAppointmentsHandler(db *sql.DB, logger *logging.Logger) *AdminAppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminAppointmentsHandler{
		db:     db,
		logger: logger,
	}
}

// AppointmentListItem represents an appointment in list responses.
type AppointmentListItem struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Date            string  `json:"date"`
	TimeSlot        string  `json:"time_slot"`
	TopicID         string  `json:"topic_id"`
	Message         *string `json:"message,omitempty"`
	Status          string  `json:"status"`
	PaymentStatus   string  `json:"payment_status"`
	PaymentIntentID *string `json:"stripe_payment_intent_id,omitempty"`
	DepositCents    int64   `json:"deposit_cents"`
	CreatedAt       string  `json:"created_at"`
	ConfirmedAt     *string `json:"confirmed_at,omitempty"`
}

// AppointmentsListResponse represents a paginated list of appointments.
type AppointmentsListResponse struct {
	Appointments []AppointmentListItem `json:"appointments"`
	Total        int                   `json:"total"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"page_size"`
	TotalPages   int                   `json:"total_pages"`
}

// AppointmentStatsResponse contains aggregated booking statistics.
type AppointmentStatsResponse struct {
	TotalAppointments  int            `json:"total_appointments"`
	ByStatus           map[string]int `json:"by_status"`
	TotalDepositCents  int64          `json:"total_deposit_cents"`
	TodayCount         int            `json:"today_count"`
	WeekCount          int            `json:"week_count"`
	MonthCount         int            `json:"month_count"`
	ConfirmedThisMonth int            `json:"confirmed_this_month"`
}

// ListAppointments returns a paginated list of appointments.
// GET /admin/appointments
func (h *AdminAppointmentsHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	status := r.URL.Query().Get("status")
	dateFrom := r.URL.Query().Get("date_from")
	dateTo := r.URL.Query().Get("date_to")

	offset := (page - 1) * pageSize

	query := `
		SELECT id, name, email, date, time_slot, topic_id, message,
		       status, payment_status, stripe_payment_intent_id,
		       deposit_cents, created_at, confirmed_at
		FROM appointments
		WHERE 1=1
	`
	countQuery := "SELECT COUNT(*) FROM appointments WHERE 1=1"
	args := []any{}
	argNum := 1

	if status != "" {
		clause := " AND status = $" + strconv.Itoa(argNum)
		query += clause
		countQuery += clause
		args = append(args, status)
		argNum++
	}
	if dateFrom != "" {
		if _, err := time.Parse("2006-01-02", dateFrom); err == nil {
			clause := " AND date >= $" + strconv.Itoa(argNum)
			query += clause
			countQuery += clause
			args = append(args, dateFrom)
			argNum++
		}
	}
	if dateTo != "" {
		if _, err := time.Parse("2006-01-02", dateTo); err == nil {
			clause := " AND date <= $" + strconv.Itoa(argNum)
			query += clause
			countQuery += clause
			args = append(args, dateTo)
			argNum++
		}
	}

	var total int
	if err := h.db.QueryRowContext(r.Context(), countQuery, args...).Scan(&total); err != nil {
		h.logger.Error("failed to count appointments", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	query += " ORDER BY created_at DESC"
	query += " LIMIT $" + strconv.Itoa(argNum) + " OFFSET $" + strconv.Itoa(argNum+1)
	args = append(args, pageSize, offset)

	rows, err := h.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		h.logger.Error("failed to query appointments", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	var items []AppointmentListItem
	for rows.Next() {
		var item AppointmentListItem
		var message, intentID sql.NullString
		var createdAt time.Time
		var confirmedAt sql.NullTime

		err := rows.Scan(
			&item.ID, &item.Name, &item.Email, &item.Date, &item.TimeSlot,
			&item.TopicID, &message, &item.Status, &item.PaymentStatus,
			&intentID, &item.DepositCents, &createdAt, &confirmedAt,
		)
		if err != nil {
			h.logger.Error("failed to scan appointment", "error", err)
			continue
		}

		item.CreatedAt = createdAt.Format(time.RFC3339)
		if message.Valid && message.String != "" {
			item.Message = &message.String
		}
		if intentID.Valid {
			item.PaymentIntentID = &intentID.String
		}
		if confirmedAt.Valid {
			formatted := confirmedAt.Time.Format(time.RFC3339)
			item.ConfirmedAt = &formatted
		}

		items = append(items, item)
	}

	if items == nil {
		items = []AppointmentListItem{}
	}

	totalPages := (total + pageSize - 1) / pageSize
	response := AppointmentsListResponse{
		Appointments: items,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
		TotalPages:   totalPages,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetAppointmentStats returns aggregated booking statistics.
// GET /admin/appointments/stats
func (h *AdminAppointmentsHandler) GetAppointmentStats(w http.ResponseWriter, r *http.Request) {
	stats := AppointmentStatsResponse{
		ByStatus: make(map[string]int),
	}

	now := time.Now()
	today := now.Truncate(24 * time.Hour)
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, -1, 0)

	if err := h.db.QueryRowContext(r.Context(),
		`SELECT COUNT(*), COALESCE(SUM(deposit_cents), 0) FROM appointments`,
	).Scan(&stats.TotalAppointments, &stats.TotalDepositCents); err != nil {
		h.logger.Error("failed to aggregate appointments", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	rows, err := h.db.QueryContext(r.Context(),
		`SELECT status, COUNT(*) FROM appointments GROUP BY status`,
	)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var status string
			var count int
			if rows.Scan(&status, &count) == nil {
				stats.ByStatus[status] = count
			}
		}
	}

	h.db.QueryRowContext(r.Context(),
		`SELECT COUNT(*) FROM appointments WHERE created_at >= $1`, today,
	).Scan(&stats.TodayCount)

	h.db.QueryRowContext(r.Context(),
		`SELECT COUNT(*) FROM appointments WHERE created_at >= $1`, weekAgo,
	).Scan(&stats.WeekCount)

	h.db.QueryRowContext(r.Context(),
		`SELECT COUNT(*) FROM appointments WHERE created_at >= $1`, monthAgo,
	).Scan(&stats.MonthCount)

	h.db.QueryRowContext(r.Context(),
		`SELECT COUNT(*) FROM appointments WHERE status = 'confirmed' AND confirmed_at >= $1`, monthAgo,
	).Scan(&stats.ConfirmedThisMonth)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
