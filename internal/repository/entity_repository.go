package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/relaycrm/sync-api/internal/models"
)

// EntityRepository gives the sync handlers access to the local business
// objects. Updates go through a per-entity column whitelist so the sync
// path can never clobber fields it does not own.
type EntityRepository interface {
	GetContact(ctx context.Context, orgID, id string) (models.Contact, error)
	GetContactByEmail(ctx context.Context, orgID, email string) (models.Contact, error)
	CreateContact(ctx context.Context, c models.Contact) (models.Contact, error)
	UpdateContactFields(ctx context.Context, orgID, id string, fields map[string]string) error

	GetDeal(ctx context.Context, orgID, id string) (models.Deal, error)
	CreateDeal(ctx context.Context, d models.Deal) (models.Deal, error)
	UpdateDealFields(ctx context.Context, orgID, id string, fields map[string]string) error

	GetTask(ctx context.Context, orgID, id string) (models.Task, error)
	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	UpdateTaskFields(ctx context.Context, orgID, id string, fields map[string]string) error

	GetNote(ctx context.Context, orgID, id string) (models.Note, error)

	GetQuote(ctx context.Context, orgID, id string) (models.Quote, error)
	UpdateQuoteFields(ctx context.Context, orgID, id string, fields map[string]string) error

	GetLineItem(ctx context.Context, orgID, id string) (models.LineItem, error)
	UpdateLineItemFields(ctx context.Context, orgID, id string, fields map[string]string) error

	GetCustomObject(ctx context.Context, orgID, id string) (models.CustomObject, error)
	CreateCustomObject(ctx context.Context, obj models.CustomObject) (models.CustomObject, error)
	UpdateCustomObjectProperties(ctx context.Context, orgID, id string, properties map[string]string) error
}

type entityRepository struct {
	db *sql.DB
}

func NewEntityRepository(db *sql.DB) EntityRepository {
	return &entityRepository{db: db}
}

// Columns the sync subsystem owns, per table. Anything else is off limits.
var ownedColumns = map[string]map[string]bool{
	"contacts":   {"email": true, "first_name": true, "last_name": true, "phone": true, "company": true, "lead_source": true},
	"deals":      {"name": true, "amount": true, "stage": true, "close_date": true},
	"tasks":      {"title": true, "body": true, "status": true, "due_at": true, "owner_id": true},
	"quotes":     {"title": true, "status": true, "amount": true},
	"line_items": {"name": true, "quantity": true, "unit_price": true},
}

func (r *entityRepository) updateFields(ctx context.Context, table, orgID, id string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	allowed := ownedColumns[table]

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !allowed[col] {
			return fmt.Errorf("column %q of %s is not owned by sync", col, table)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	set := make([]string, 0, len(cols)+1)
	args := make([]interface{}, 0, len(cols)+2)
	for i, col := range cols {
		set = append(set, fmt.Sprintf("%s = NULLIF($%d, '')", col, i+1))
		args = append(args, fields[col])
	}
	set = append(set, "updated_at = NOW()")
	args = append(args, orgID, id)

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE org_id = $%d AND id = $%d",
		table, strings.Join(set, ", "), len(cols)+1, len(cols)+2,
	)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", table, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *entityRepository) GetContact(ctx context.Context, orgID, id string) (models.Contact, error) {
	const query = `
		SELECT id, org_id, email, first_name, last_name, phone, company, lead_source, created_at, updated_at
		FROM contacts
		WHERE org_id = $1 AND id = $2
	`
	return scanContact(r.db.QueryRowContext(ctx, query, orgID, id))
}

func (r *entityRepository) GetContactByEmail(ctx context.Context, orgID, email string) (models.Contact, error) {
	const query = `
		SELECT id, org_id, email, first_name, last_name, phone, company, lead_source, created_at, updated_at
		FROM contacts
		WHERE org_id = $1 AND LOWER(email) = LOWER($2)
		ORDER BY created_at ASC
		LIMIT 1
	`
	return scanContact(r.db.QueryRowContext(ctx, query, orgID, email))
}

func scanContact(row *sql.Row) (models.Contact, error) {
	var c models.Contact
	err := row.Scan(&c.ID, &c.OrgID, &c.Email, &c.FirstName, &c.LastName, &c.Phone, &c.Company, &c.LeadSource, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r *entityRepository) CreateContact(ctx context.Context, c models.Contact) (models.Contact, error) {
	const query = `
		INSERT INTO contacts (org_id, email, first_name, last_name, phone, company, lead_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, c.OrgID, c.Email, c.FirstName, c.LastName, c.Phone, c.Company, c.LeadSource).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return models.Contact{}, fmt.Errorf("failed to create contact for org %s: %w", c.OrgID, err)
	}
	return c, nil
}

func (r *entityRepository) UpdateContactFields(ctx context.Context, orgID, id string, fields map[string]string) error {
	return r.updateFields(ctx, "contacts", orgID, id, fields)
}

func (r *entityRepository) GetDeal(ctx context.Context, orgID, id string) (models.Deal, error) {
	const query = `
		SELECT id, org_id, name, amount, stage, close_date, contact_id, created_at, updated_at
		FROM deals
		WHERE org_id = $1 AND id = $2
	`
	var d models.Deal
	var closeDate sql.NullTime
	var contactID sql.NullString
	err := r.db.QueryRowContext(ctx, query, orgID, id).
		Scan(&d.ID, &d.OrgID, &d.Name, &d.Amount, &d.Stage, &closeDate, &contactID, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if closeDate.Valid {
		t := closeDate.Time
		d.CloseDate = &t
	}
	if contactID.Valid {
		d.ContactID = &contactID.String
	}
	return d, nil
}

func (r *entityRepository) CreateDeal(ctx context.Context, d models.Deal) (models.Deal, error) {
	const query = `
		INSERT INTO deals (org_id, name, amount, stage, close_date, contact_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, d.OrgID, d.Name, d.Amount, d.Stage, d.CloseDate, d.ContactID).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return models.Deal{}, fmt.Errorf("failed to create deal for org %s: %w", d.OrgID, err)
	}
	return d, nil
}

func (r *entityRepository) UpdateDealFields(ctx context.Context, orgID, id string, fields map[string]string) error {
	return r.updateFields(ctx, "deals", orgID, id, fields)
}

func (r *entityRepository) GetTask(ctx context.Context, orgID, id string) (models.Task, error) {
	const query = `
		SELECT id, org_id, title, body, status, due_at, owner_id, contact_id, created_at, updated_at
		FROM tasks
		WHERE org_id = $1 AND id = $2
	`
	var t models.Task
	var dueAt sql.NullTime
	var ownerID, contactID sql.NullString
	err := r.db.QueryRowContext(ctx, query, orgID, id).
		Scan(&t.ID, &t.OrgID, &t.Title, &t.Body, &t.Status, &dueAt, &ownerID, &contactID, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if dueAt.Valid {
		at := dueAt.Time
		t.DueAt = &at
	}
	if ownerID.Valid {
		t.OwnerID = &ownerID.String
	}
	if contactID.Valid {
		t.ContactID = &contactID.String
	}
	return t, nil
}

func (r *entityRepository) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	const query = `
		INSERT INTO tasks (org_id, title, body, status, due_at, owner_id, contact_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, t.OrgID, t.Title, t.Body, t.Status, t.DueAt, t.OwnerID, t.ContactID).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to create task for org %s: %w", t.OrgID, err)
	}
	return t, nil
}

func (r *entityRepository) UpdateTaskFields(ctx context.Context, orgID, id string, fields map[string]string) error {
	return r.updateFields(ctx, "tasks", orgID, id, fields)
}

func (r *entityRepository) GetNote(ctx context.Context, orgID, id string) (models.Note, error) {
	const query = `
		SELECT id, org_id, body, contact_id, deal_id, created_at, updated_at
		FROM notes
		WHERE org_id = $1 AND id = $2
	`
	var n models.Note
	var contactID, dealID sql.NullString
	err := r.db.QueryRowContext(ctx, query, orgID, id).
		Scan(&n.ID, &n.OrgID, &n.Body, &contactID, &dealID, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	if err != nil {
		return n, err
	}
	if contactID.Valid {
		n.ContactID = &contactID.String
	}
	if dealID.Valid {
		n.DealID = &dealID.String
	}
	return n, nil
}

func (r *entityRepository) GetQuote(ctx context.Context, orgID, id string) (models.Quote, error) {
	const query = `
		SELECT id, org_id, title, status, amount, deal_id, created_at, updated_at
		FROM quotes
		WHERE org_id = $1 AND id = $2
	`
	var q models.Quote
	var dealID sql.NullString
	err := r.db.QueryRowContext(ctx, query, orgID, id).
		Scan(&q.ID, &q.OrgID, &q.Title, &q.Status, &q.Amount, &dealID, &q.CreatedAt, &q.UpdatedAt)
	if err == sql.ErrNoRows {
		return q, ErrNotFound
	}
	if err != nil {
		return q, err
	}
	if dealID.Valid {
		q.DealID = &dealID.String
	}
	return q, nil
}

func (r *entityRepository) UpdateQuoteFields(ctx context.Context, orgID, id string, fields map[string]string) error {
	return r.updateFields(ctx, "quotes", orgID, id, fields)
}

func (r *entityRepository) GetLineItem(ctx context.Context, orgID, id string) (models.LineItem, error) {
	const query = `
		SELECT id, org_id, quote_id, name, quantity, unit_price, created_at, updated_at
		FROM line_items
		WHERE org_id = $1 AND id = $2
	`
	var li models.LineItem
	err := r.db.QueryRowContext(ctx, query, orgID, id).
		Scan(&li.ID, &li.OrgID, &li.QuoteID, &li.Name, &li.Quantity, &li.UnitPrice, &li.CreatedAt, &li.UpdatedAt)
	if err == sql.ErrNoRows {
		return li, ErrNotFound
	}
	return li, err
}

func (r *entityRepository) UpdateLineItemFields(ctx context.Context, orgID, id string, fields map[string]string) error {
	return r.updateFields(ctx, "line_items", orgID, id, fields)
}

func (r *entityRepository) GetCustomObject(ctx context.Context, orgID, id string) (models.CustomObject, error) {
	const query = `
		SELECT id, org_id, object_type, properties, created_at, updated_at
		FROM custom_objects
		WHERE org_id = $1 AND id = $2
	`
	var obj models.CustomObject
	var propsRaw []byte
	err := r.db.QueryRowContext(ctx, query, orgID, id).
		Scan(&obj.ID, &obj.OrgID, &obj.ObjectType, &propsRaw, &obj.CreatedAt, &obj.UpdatedAt)
	if err == sql.ErrNoRows {
		return obj, ErrNotFound
	}
	if err != nil {
		return obj, err
	}
	if len(propsRaw) > 0 {
		if err := json.Unmarshal(propsRaw, &obj.Properties); err != nil {
			return obj, fmt.Errorf("invalid properties for custom object %s: %w", id, err)
		}
	}
	return obj, nil
}

func (r *entityRepository) CreateCustomObject(ctx context.Context, obj models.CustomObject) (models.CustomObject, error) {
	propsRaw, err := json.Marshal(obj.Properties)
	if err != nil {
		return models.CustomObject{}, fmt.Errorf("marshal properties: %w", err)
	}
	const query = `
		INSERT INTO custom_objects (org_id, object_type, properties)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query, obj.OrgID, obj.ObjectType, propsRaw).
		Scan(&obj.ID, &obj.CreatedAt, &obj.UpdatedAt)
	if err != nil {
		return models.CustomObject{}, fmt.Errorf("failed to create custom object for org %s: %w", obj.OrgID, err)
	}
	return obj, nil
}

func (r *entityRepository) UpdateCustomObjectProperties(ctx context.Context, orgID, id string, properties map[string]string) error {
	propsRaw, err := json.Marshal(properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	const query = `
		UPDATE custom_objects
		SET properties = properties || $3::jsonb, updated_at = NOW()
		WHERE org_id = $1 AND id = $2
	`
	res, err := r.db.ExecContext(ctx, query, orgID, id, propsRaw)
	if err != nil {
		return fmt.Errorf("failed to update custom object %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
