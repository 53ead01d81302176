package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/billvault/backend/internal/models"
)

// AdminService exposes the oversight console API: listings across all
// users, single-transaction inspection and the audited retry action. It
// never mutates balances or transaction state directly; the only mutation
// it can trigger goes through the settlement engine's Retry.
type AdminService struct {
	db         *sql.DB
	settlement *SettlementService
	bills      *BillPaymentStore
}

func NewAdminService(db *sql.DB, settlement *SettlementService, bills *BillPaymentStore) *AdminService {
	return &AdminService{db: db, settlement: settlement, bills: bills}
}

func parsePagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

func paginationMeta(total, page, limit int) map[string]int {
	return map[string]int{
		"total": total,
		"page":  page,
		"limit": limit,
		"pages": int(math.Ceil(float64(total) / float64(limit))),
	}
}

// GetUsers lists users with wallet balances
// @Summary List users
// @Description List users with their wallet balances, searchable by email, phone or name
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search term"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} object{users=[]models.UserWithBalance,pagination=object}
// @Failure 500 {object} ErrorResponse
// @Router /admin/users [get]
func (s *AdminService) GetUsers(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	query := `
		SELECT u.id, u.email, u.full_name, u.phone_number, u.role, u.last_login, u.created_at, u.updated_at,
		       COALESCE(w.balance, 0)
		FROM users u
		LEFT JOIN wallets w ON w.user_id = u.id
	`
	countQuery := `SELECT COUNT(*) FROM users u`
	args := []any{}

	if search != "" {
		filter := ` WHERE u.email ILIKE $1 OR u.phone_number ILIKE $1 OR u.full_name ILIKE $1`
		query += filter
		countQuery += filter
		args = append(args, "%"+search+"%")
	}

	query += fmt.Sprintf(` ORDER BY u.created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	rows, err := s.db.Query(query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		log.Printf("[ADMIN] Failed to list users: %v", err)
		SendErrorResponse(w, "Failed to retrieve users", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	users := []models.UserWithBalance{}
	for rows.Next() {
		u := models.UserWithBalance{}
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.PhoneNumber, &u.Role,
			&u.LastLogin, &u.CreatedAt, &u.UpdatedAt, &u.WalletBalance); err != nil {
			log.Printf("[ADMIN] Failed to scan user row: %v", err)
			SendErrorResponse(w, "Failed to retrieve users", http.StatusInternalServerError, nil)
			return
		}
		users = append(users, u)
	}

	var total int
	if err := s.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		SendErrorResponse(w, "Failed to retrieve users", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"users":      users,
		"pagination": paginationMeta(total, page, limit),
	})
}

// GetFundings lists funding transactions
// @Summary List wallet fundings
// @Description List funding transactions with optional status and date filters
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param userId query int false "Filter by user"
// @Param status query string false "Filter by status"
// @Param startDate query string false "ISO date lower bound"
// @Param endDate query string false "ISO date upper bound"
// @Success 200 {object} object{fundings=[]models.Transaction,pagination=object}
// @Failure 500 {object} ErrorResponse
// @Router /admin/fundings [get]
func (s *AdminService) GetFundings(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)

	conditions := []string{"type = $1"}
	args := []any{models.KindFunding}

	if userID := r.URL.Query().Get("userId"); userID != "" {
		args = append(args, userID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if status := r.URL.Query().Get("status"); status != "" {
		args = append(args, status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if startDate := r.URL.Query().Get("startDate"); startDate != "" {
		args = append(args, startDate)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if endDate := r.URL.Query().Get("endDate"); endDate != "" {
		args = append(args, endDate)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	where := " WHERE " + strings.Join(conditions, " AND ")
	query := `SELECT ` + transactionColumns + ` FROM transactions` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	rows, err := s.db.Query(query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		log.Printf("[ADMIN] Failed to list fundings: %v", err)
		SendErrorResponse(w, "Failed to retrieve fundings", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	fundings := []models.Transaction{}
	for rows.Next() {
		tx := models.Transaction{}
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Status,
			&tx.Reference, &tx.Metadata, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
			SendErrorResponse(w, "Failed to retrieve fundings", http.StatusInternalServerError, nil)
			return
		}
		fundings = append(fundings, tx)
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		SendErrorResponse(w, "Failed to retrieve fundings", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"fundings":   fundings,
		"pagination": paginationMeta(total, page, limit),
	})
}

// GetBills lists bill payments across users
// @Summary List bill payments
// @Description List bill payments with type, provider, status and date filters
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param userId query int false "Filter by user"
// @Param type query string false "Filter by kind"
// @Param status query string false "Filter by status"
// @Param provider query string false "Filter by provider"
// @Success 200 {object} object{bills=[]models.BillPayment,pagination=object}
// @Failure 500 {object} ErrorResponse
// @Router /admin/bills [get]
func (s *AdminService) GetBills(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)

	conditions := []string{}
	args := []any{}

	if userID := r.URL.Query().Get("userId"); userID != "" {
		args = append(args, userID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if kind := r.URL.Query().Get("type"); kind != "" {
		args = append(args, kind)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if status := r.URL.Query().Get("status"); status != "" {
		args = append(args, status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if provider := r.URL.Query().Get("provider"); provider != "" {
		args = append(args, provider)
		conditions = append(conditions, fmt.Sprintf("provider = $%d", len(args)))
	}
	if startDate := r.URL.Query().Get("startDate"); startDate != "" {
		args = append(args, startDate)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if endDate := r.URL.Query().Get("endDate"); endDate != "" {
		args = append(args, endDate)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	query := `SELECT ` + billColumns + ` FROM bill_payments` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	rows, err := s.db.Query(query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		log.Printf("[ADMIN] Failed to list bills: %v", err)
		SendErrorResponse(w, "Failed to retrieve bill payments", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	bills := []models.BillPayment{}
	for rows.Next() {
		bp := models.BillPayment{}
		if err := rows.Scan(&bp.ID, &bp.TransactionID, &bp.UserID, &bp.Type, &bp.CustomerID,
			&bp.Provider, &bp.Amount, &bp.Status, &bp.Reference, &bp.ResponseData,
			&bp.CreatedAt, &bp.UpdatedAt); err != nil {
			SendErrorResponse(w, "Failed to retrieve bill payments", http.StatusInternalServerError, nil)
			return
		}
		bills = append(bills, bp)
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM bill_payments`+where, args...).Scan(&total); err != nil {
		SendErrorResponse(w, "Failed to retrieve bill payments", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"bills":      bills,
		"pagination": paginationMeta(total, page, limit),
	})
}

// GetTransaction fetches one transaction with its bill detail
// @Summary Get a transaction
// @Description Fetch a transaction and its linked bill payment detail, if any
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} object{transaction=models.Transaction,billPayment=models.BillPayment}
// @Failure 404 {object} ErrorResponse
// @Router /admin/transactions/{id} [get]
func (s *AdminService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tx := models.Transaction{}
	err := s.db.QueryRow(`
		SELECT `+transactionColumns+` FROM transactions WHERE id = $1
	`, id).Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Status,
		&tx.Reference, &tx.Metadata, &tx.CreatedAt, &tx.UpdatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to retrieve transaction", http.StatusInternalServerError, nil)
		return
	}

	var billPayment *models.BillPayment
	if models.IsSpendKind(tx.Type) {
		bp, err := s.bills.FindByTransaction(r.Context(), tx.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			SendErrorResponse(w, "Failed to retrieve transaction", http.StatusInternalServerError, nil)
			return
		}
		billPayment = bp
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transaction": tx,
		"billPayment": billPayment,
	})
}

// RetryTransaction reopens a failed transaction
// @Summary Retry a failed transaction
// @Description Reopen a failed transaction for another settlement attempt
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} object{transaction=models.Transaction}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/transactions/{id}/retry [post]
func (s *AdminService) RetryTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	adminID, _ := r.Context().Value("userID").(int)
	log.Printf("[ADMIN] Retry requested for transaction %s by admin %d", id, adminID)

	tx, err := s.settlement.Retry(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		return
	}
	if errors.Is(err, ErrInvalidTransition) {
		SendErrorResponse(w, "Only failed transactions can be retried", http.StatusBadRequest, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to retry transaction", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"transaction": tx,
	})
}

// GetStats returns dashboard statistics
// @Summary Dashboard statistics
// @Description Totals, state counts and success/fail rates plus recent transactions
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{stats=object,recentTransactions=[]models.Transaction}
// @Failure 500 {object} ErrorResponse
// @Router /admin/stats [get]
func (s *AdminService) GetStats(w http.ResponseWriter, r *http.Request) {
	var totalUsers, totalTransactions, successful, failed, pending int
	var totalWalletBalance int64

	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&totalUsers)
	if err == nil {
		err = s.db.QueryRow(`SELECT COALESCE(SUM(balance), 0) FROM wallets`).Scan(&totalWalletBalance)
	}
	if err == nil {
		err = s.db.QueryRow(`
			SELECT COUNT(*),
			       COUNT(*) FILTER (WHERE status = 'successful'),
			       COUNT(*) FILTER (WHERE status = 'failed'),
			       COUNT(*) FILTER (WHERE status = 'pending')
			FROM transactions
		`).Scan(&totalTransactions, &successful, &failed, &pending)
	}
	if err != nil {
		log.Printf("[ADMIN] Failed to compute stats: %v", err)
		SendErrorResponse(w, "Failed to retrieve statistics", http.StatusInternalServerError, nil)
		return
	}

	var successRate, failRate float64
	if totalTransactions > 0 {
		successRate = float64(successful) / float64(totalTransactions) * 100
		failRate = float64(failed) / float64(totalTransactions) * 100
	}

	rows, err := s.db.Query(`
		SELECT ` + transactionColumns + ` FROM transactions ORDER BY created_at DESC LIMIT 10
	`)
	if err != nil {
		SendErrorResponse(w, "Failed to retrieve statistics", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	recent := []models.Transaction{}
	for rows.Next() {
		tx := models.Transaction{}
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Status,
			&tx.Reference, &tx.Metadata, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
			SendErrorResponse(w, "Failed to retrieve statistics", http.StatusInternalServerError, nil)
			return
		}
		recent = append(recent, tx)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"stats": map[string]any{
			"totalUsers":             totalUsers,
			"totalWalletBalance":     totalWalletBalance,
			"totalTransactions":      totalTransactions,
			"successfulTransactions": successful,
			"failedTransactions":     failed,
			"pendingTransactions":    pending,
			"successRate":            successRate,
			"failRate":               failRate,
		},
		"recentTransactions": recent,
	})
}
