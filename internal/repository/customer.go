package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	apperrors "github.com/umalmyha/customer-records/internal/errors"
	"github.com/umalmyha/customer-records/internal/model"
)

// CustomerRepository is document store of customers
type CustomerRepository interface {
	// FindByID returns nil customer without error if there is no customer with such id
	FindByID(context.Context, string) (*model.Customer, error)
	// Create persists new customer, id is generated if missing
	Create(context.Context, *model.Customer) error
	// Update rewrites all customer fields except id and creation time
	Update(context.Context, *model.Customer) error
	DeleteByID(context.Context, string) error
	// FindPage returns up to size customers ordered from the newest, starting right after cursor
	FindPage(context.Context, int, *model.Cursor) ([]*model.Customer, error)
	// FindByNamePrefix returns customers whose name starts with prefix ordered by name
	FindByNamePrefix(context.Context, string) ([]*model.Customer, error)
	// Statistics scans all customers, now is epoch millis new customers are counted against
	Statistics(context.Context, int64) (*model.Statistics, error)
}

func generateID(c *model.Customer) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
}

const customerColumns = "id, name, email, phone, street, city, state, zip_code, country, photo_url, created_at, updated_at"

type postgresCustomerRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCustomerRepository builds CustomerRepository backed by postgres
func NewPostgresCustomerRepository(p *pgxpool.Pool) CustomerRepository {
	return &postgresCustomerRepository{pool: p}
}

func (r *postgresCustomerRepository) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	q := "SELECT " + customerColumns + " FROM customers WHERE id = $1"

	c, err := r.scanRow(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *postgresCustomerRepository) Create(ctx context.Context, c *model.Customer) error {
	generateID(c)

	q := `INSERT INTO customers(id, name, email, phone, street, city, state, zip_code, country, photo_url, created_at, updated_at)
		  VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	a := c.Address
	_, err := r.pool.Exec(ctx, q, c.ID, c.Name, c.Email, c.Phone, a.Street, a.City, a.State, a.ZipCode, a.Country, c.PhotoURL, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *postgresCustomerRepository) Update(ctx context.Context, c *model.Customer) error {
	q := `UPDATE customers SET name = $1, email = $2, phone = $3, street = $4, city = $5, state = $6, zip_code = $7,
		  country = $8, photo_url = $9, updated_at = $10 WHERE id = $11`
	a := c.Address
	comm, err := r.pool.Exec(ctx, q, c.Name, c.Email, c.Phone, a.Street, a.City, a.State, a.ZipCode, a.Country, c.PhotoURL, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}

	if comm.RowsAffected() == 0 {
		return apperrors.NewNotFoundErr("customer " + c.ID + " doesn't exist")
	}
	return nil
}

func (r *postgresCustomerRepository) DeleteByID(ctx context.Context, id string) error {
	q := "DELETE FROM customers WHERE id = $1"
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

func (r *postgresCustomerRepository) FindPage(ctx context.Context, size int, after *model.Cursor) ([]*model.Customer, error) {
	if after == nil {
		q := "SELECT " + customerColumns + " FROM customers ORDER BY created_at DESC, id DESC LIMIT $1"
		return r.query(ctx, q, size)
	}

	q := "SELECT " + customerColumns + ` FROM customers WHERE (created_at, id) < ($1, $2)
		  ORDER BY created_at DESC, id DESC LIMIT $3`
	return r.query(ctx, q, after.CreatedAt(), after.ID(), size)
}

func (r *postgresCustomerRepository) FindByNamePrefix(ctx context.Context, prefix string) ([]*model.Customer, error) {
	q := "SELECT " + customerColumns + " FROM customers WHERE left(name, char_length($1)) = $1 ORDER BY name, id"
	return r.query(ctx, q, prefix)
}

func (r *postgresCustomerRepository) Statistics(ctx context.Context, now int64) (*model.Statistics, error) {
	rows, err := r.pool.Query(ctx, "SELECT created_at, country FROM customers")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	b := model.NewStatisticsBuilder(now)
	for rows.Next() {
		var createdAt int64
		var country string
		if err := rows.Scan(&createdAt, &country); err != nil {
			return nil, err
		}
		b.Add(createdAt, country)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

func (r *postgresCustomerRepository) query(ctx context.Context, q string, args ...any) ([]*model.Customer, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]*model.Customer, 0)
	for rows.Next() {
		c, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *postgresCustomerRepository) scanRow(row pgx.Row) (*model.Customer, error) {
	var c model.Customer
	a := &c.Address
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &a.Street, &a.City, &a.State, &a.ZipCode, &a.Country, &c.PhotoURL, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
