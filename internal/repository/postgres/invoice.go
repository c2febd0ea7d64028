package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/invoice"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/postgres"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type InvoiceRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewInvoiceRepository(client postgres.IClient, logger *logger.Logger) invoice.Repository {
	return &InvoiceRepository{client: client, logger: logger}
}

type invoiceRow struct {
	ID                    string                         `db:"id"`
	CustomerID            string                         `db:"customer_id"`
	Currency              string                         `db:"currency"`
	IssueDate             time.Time                      `db:"issue_date"`
	DueDate               time.Time                      `db:"due_date"`
	PaymentStatus         types.PaymentStatus            `db:"payment_status"`
	LineItems             jsonColumn[[]invoice.LineItem] `db:"line_items"`
	SubscriptionRecordIDs pq.StringArray                 `db:"subscription_record_ids"`
	ExternalPaymentObjRef string                         `db:"external_payment_obj_ref"`
	ExternalPaymentObjTyp string                         `db:"external_payment_obj_type"`
	Amount                decimal.Decimal                `db:"amount"`
	OrganizationID        string                         `db:"organization_id"`
	Status                types.Status                   `db:"status"`
	CreatedAt             time.Time                      `db:"created_at"`
	UpdatedAt             time.Time                      `db:"updated_at"`
}

func (row *invoiceRow) toModel() *invoice.Invoice {
	return &invoice.Invoice{
		ID:                    row.ID,
		CustomerID:            row.CustomerID,
		Currency:              row.Currency,
		IssueDate:             row.IssueDate,
		DueDate:               row.DueDate,
		PaymentStatus:         row.PaymentStatus,
		LineItems:             row.LineItems.V,
		SubscriptionRecordIDs: row.SubscriptionRecordIDs,
		ExternalPaymentObjRef: row.ExternalPaymentObjRef,
		ExternalPaymentObjTyp: row.ExternalPaymentObjTyp,
		Amount:                row.Amount,
		BaseModel: types.BaseModel{
			OrganizationID: row.OrganizationID,
			Status:         row.Status,
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
		},
	}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, organization_id, customer_id, currency, issue_date, due_date,
			payment_status, line_items, subscription_record_ids,
			external_payment_obj_ref, external_payment_obj_type, amount,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		inv.ID, inv.OrganizationID, inv.CustomerID, inv.Currency,
		inv.IssueDate, inv.DueDate, inv.PaymentStatus,
		jsonColumn[[]invoice.LineItem]{V: inv.LineItems},
		pq.StringArray(inv.SubscriptionRecordIDs),
		inv.ExternalPaymentObjRef, inv.ExternalPaymentObjTyp, inv.Amount,
		inv.Status, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("An invoice with this id already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create invoice").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *InvoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	query := `
		SELECT * FROM invoices
		WHERE organization_id = $1 AND id = $2 AND status != $3
	`

	var row invoiceRow
	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &row, query,
		types.GetOrganizationID(ctx), id, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Invoice %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice").
			Mark(ierr.ErrDatabase)
	}
	return row.toModel(), nil
}

func (r *InvoiceRepository) List(ctx context.Context, filter *invoice.Filter) ([]*invoice.Invoice, error) {
	query := `
		SELECT * FROM invoices
		WHERE organization_id = $1 AND status != $2
	`
	args := []interface{}{types.GetOrganizationID(ctx), types.StatusDeleted}

	if filter != nil {
		if filter.CustomerID != "" {
			args = append(args, filter.CustomerID)
			query += fmt.Sprintf(" AND customer_id = $%d", len(args))
		}
		if filter.PaymentStatus != "" {
			args = append(args, filter.PaymentStatus)
			query += fmt.Sprintf(" AND payment_status = $%d", len(args))
		}
		if filter.WithExternalRef {
			query += " AND external_payment_obj_ref != ''"
		}
	}
	query += " ORDER BY issue_date DESC"

	var rows []*invoiceRow
	if err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &rows, query, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list invoices").
			Mark(ierr.ErrDatabase)
	}
	return lo.Map(rows, func(row *invoiceRow, _ int) *invoice.Invoice {
		return row.toModel()
	}), nil
}

func (r *InvoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		UPDATE invoices SET
			payment_status = $3, line_items = $4, subscription_record_ids = $5,
			external_payment_obj_ref = $6, external_payment_obj_type = $7,
			amount = $8, due_date = $9, status = $10, updated_at = now()
		WHERE organization_id = $1 AND id = $2
	`
	res, err := r.client.Querier(ctx).ExecContext(ctx, query,
		inv.OrganizationID, inv.ID, inv.PaymentStatus,
		jsonColumn[[]invoice.LineItem]{V: inv.LineItems},
		pq.StringArray(inv.SubscriptionRecordIDs),
		inv.ExternalPaymentObjRef, inv.ExternalPaymentObjTyp,
		inv.Amount, inv.DueDate, inv.Status)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update invoice").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(res, "invoice", inv.ID)
}

// ListUnpaidWithExternalRef is not organization scoped; the periodic driver
// sweeps every tenant's invoices in one pass
func (r *InvoiceRepository) ListUnpaidWithExternalRef(ctx context.Context) ([]*invoice.Invoice, error) {
	query := `
		SELECT * FROM invoices
		WHERE status != $1 AND payment_status = $2 AND external_payment_obj_ref != ''
		ORDER BY issue_date ASC
	`
	var rows []*invoiceRow
	err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &rows, query,
		types.StatusDeleted, types.PaymentStatusUnpaid)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list unpaid invoices").
			Mark(ierr.ErrDatabase)
	}
	return lo.Map(rows, func(row *invoiceRow, _ int) *invoice.Invoice {
		return row.toModel()
	}), nil
}

func (r *InvoiceRepository) ListForRecord(ctx context.Context, recordID string, includeDrafts bool) ([]*invoice.Invoice, error) {
	query := `
		SELECT * FROM invoices
		WHERE organization_id = $1 AND status != $2 AND $3 = ANY(subscription_record_ids)
	`
	args := []interface{}{types.GetOrganizationID(ctx), types.StatusDeleted, recordID}

	if !includeDrafts {
		args = append(args, types.PaymentStatusDraft)
		query += fmt.Sprintf(" AND payment_status != $%d", len(args))
	}
	query += " ORDER BY issue_date DESC"

	var rows []*invoiceRow
	if err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &rows, query, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list invoices for record").
			Mark(ierr.ErrDatabase)
	}
	return lo.Map(rows, func(row *invoiceRow, _ int) *invoice.Invoice {
		return row.toModel()
	}), nil
}
