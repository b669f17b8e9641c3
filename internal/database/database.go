package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"

	"paygate/internal/models"
)

// ErrNotFound is returned when no transaction matches the lookup key.
var ErrNotFound = errors.New("transaction not found")

// Service is the persistence contract for payment and subscription
// transaction records. Rows are created on charge initiation and mutated
// exclusively through the webhook update path.
type Service interface {
	// Health returns a map of health status information.
	Health() map[string]string

	// Close terminates the database connection.
	Close() error

	// CreatePaymentTransaction appends a new payment record.
	CreatePaymentTransaction(ctx context.Context, tx *models.PaymentTransaction) error

	// GetPaymentTransaction loads a payment record by its unique reference.
	GetPaymentTransaction(ctx context.Context, reference string) (*models.PaymentTransaction, error)

	// ApplyWebhookUpdate locates the row by reference under a row lock and
	// applies the status transition. Rows already in the terminal success
	// state are left untouched. The first return reports whether the row
	// was modified.
	ApplyWebhookUpdate(ctx context.Context, reference string, status models.PaymentStatus, channel string) (bool, error)

	// CreateSubscriptionTransaction appends a new subscription record.
	CreateSubscriptionTransaction(ctx context.Context, tx *models.SubscriptionTransaction) error

	// UpdateSubscriptionStatus moves a subscription to a new state under a
	// row lock, honoring the lifecycle state machine. Illegal transitions
	// are skipped. The first return reports whether the row was modified.
	UpdateSubscriptionStatus(ctx context.Context, code string, status models.SubscriptionStatus, nextPaymentDate *time.Time) (bool, error)

	// ProviderSummary returns per-provider totals of successful payments in
	// an optional time window.
	ProviderSummary(ctx context.Context, startDate, endDate *time.Time) (map[string]ProviderTotals, error)
}

// ProviderTotals aggregates successful payments for one provider.
type ProviderTotals struct {
	TotalRequests int     `json:"totalRequests"`
	TotalAmount   float64 `json:"totalAmount"`
}

type service struct {
	db *sql.DB
}

var (
	database   = os.Getenv("PAYGATE_DB_DATABASE")
	password   = os.Getenv("PAYGATE_DB_PASSWORD")
	username   = os.Getenv("PAYGATE_DB_USERNAME")
	port       = os.Getenv("PAYGATE_DB_PORT")
	host       = os.Getenv("PAYGATE_DB_HOST")
	schema     = os.Getenv("PAYGATE_DB_SCHEMA")
	dbInstance *service
)

func New() Service {
	// Reuse connection
	if dbInstance != nil {
		return dbInstance
	}
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s", username, password, host, port, database, schema)
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatal(err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	dbInstance = &service{db: db}
	return dbInstance
}

// Health checks the health of the database connection by pinging it.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()

	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	log.Printf("Disconnected from database: %s", database)
	return s.db.Close()
}

func (s *service) CreatePaymentTransaction(ctx context.Context, tx *models.PaymentTransaction) error {
	metadata, err := marshalMetadata(tx.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payment_transactions (reference, provider, status, amount, currency, email, channel, metadata, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err = s.db.QueryRowContext(ctx, query,
		tx.Reference,
		tx.Provider,
		tx.Status,
		tx.Amount,
		tx.Currency,
		tx.Email,
		nullString(tx.Channel),
		metadata,
		tx.PaidAt).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment transaction: %w", err)
	}
	return nil
}

func (s *service) GetPaymentTransaction(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	query := `
		SELECT id, reference, provider, status, amount, currency, email,
		       COALESCE(channel, ''), COALESCE(metadata, 'null'), paid_at, created_at, updated_at
		FROM payment_transactions
		WHERE reference = $1`

	tx, err := scanPaymentTransaction(s.db.QueryRowContext(ctx, query, reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load payment transaction: %w", err)
	}
	return tx, nil
}

// ApplyWebhookUpdate serializes concurrent webhook deliveries for the same
// reference with a row lock and makes the success state terminal: duplicated
// or out-of-order deliveries after success are no-ops.
func (s *service) ApplyWebhookUpdate(ctx context.Context, reference string, status models.PaymentStatus, channel string) (bool, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	query := `
		SELECT id, reference, provider, status, amount, currency, email,
		       COALESCE(channel, ''), COALESCE(metadata, 'null'), paid_at, created_at, updated_at
		FROM payment_transactions
		WHERE reference = $1
		FOR UPDATE`

	current, err := scanPaymentTransaction(dbTx.QueryRowContext(ctx, query, reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("failed to lock payment transaction: %w", err)
	}

	if current.Status.IsTerminal() {
		return false, dbTx.Commit()
	}

	var paidAt *time.Time
	if status.IsSuccess() {
		now := time.Now().UTC()
		paidAt = &now
	}

	update := `
		UPDATE payment_transactions
		SET status = $1,
		    paid_at = COALESCE($2, paid_at),
		    channel = COALESCE(NULLIF($3, ''), channel),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $4`

	if _, err := dbTx.ExecContext(ctx, update, status, paidAt, channel, current.ID); err != nil {
		return false, fmt.Errorf("failed to update payment transaction: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit webhook update: %w", err)
	}
	return true, nil
}

func (s *service) CreateSubscriptionTransaction(ctx context.Context, tx *models.SubscriptionTransaction) error {
	metadata, err := marshalMetadata(tx.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO subscription_transactions
			(subscription_code, provider, status, plan_code, customer_email, amount, currency, quantity, next_payment_date, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err = s.db.QueryRowContext(ctx, query,
		tx.SubscriptionCode,
		tx.Provider,
		tx.Status,
		tx.PlanCode,
		tx.CustomerEmail,
		tx.Amount,
		tx.Currency,
		tx.Quantity,
		tx.NextPaymentDate,
		metadata).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription transaction: %w", err)
	}
	return nil
}

func (s *service) UpdateSubscriptionStatus(ctx context.Context, code string, status models.SubscriptionStatus, nextPaymentDate *time.Time) (bool, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	var id int64
	var currentStatus models.SubscriptionStatus
	query := `
		SELECT id, status FROM subscription_transactions
		WHERE subscription_code = $1
		FOR UPDATE`

	if err := dbTx.QueryRowContext(ctx, query, code).Scan(&id, &currentStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("failed to lock subscription transaction: %w", err)
	}

	if currentStatus == status || !currentStatus.CanTransitionTo(status) {
		return false, dbTx.Commit()
	}

	update := `
		UPDATE subscription_transactions
		SET status = $1,
		    next_payment_date = COALESCE($2, next_payment_date),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $3`

	if _, err := dbTx.ExecContext(ctx, update, status, nextPaymentDate, id); err != nil {
		return false, fmt.Errorf("failed to update subscription transaction: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit subscription update: %w", err)
	}
	return true, nil
}

// ProviderSummary returns per-provider totals of successful payments.
func (s *service) ProviderSummary(ctx context.Context, startDate, endDate *time.Time) (map[string]ProviderTotals, error) {
	query := `
		SELECT provider,
		       COALESCE(SUM(amount), 0) as total_amount,
		       COUNT(*) as total_requests
		FROM payment_transactions
		WHERE status = 'success'`

	var args []any
	if startDate != nil {
		args = append(args, *startDate)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if endDate != nil {
		args = append(args, *endDate)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query += ` GROUP BY provider`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider summary: %w", err)
	}
	defer rows.Close()

	result := make(map[string]ProviderTotals)
	for rows.Next() {
		var provider string
		var totals ProviderTotals
		if err := rows.Scan(&provider, &totals.TotalAmount, &totals.TotalRequests); err != nil {
			return nil, fmt.Errorf("failed to scan provider summary: %w", err)
		}
		result[provider] = totals
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate provider summary rows: %w", err)
	}
	return result, nil
}

func scanPaymentTransaction(row *sql.Row) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	var metadata []byte
	err := row.Scan(
		&tx.ID,
		&tx.Reference,
		&tx.Provider,
		&tx.Status,
		&tx.Amount,
		&tx.Currency,
		&tx.Email,
		&tx.Channel,
		&metadata,
		&tx.PaidAt,
		&tx.CreatedAt,
		&tx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 && string(metadata) != "null" {
		if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return &tx, nil
}

func marshalMetadata(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return data, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
