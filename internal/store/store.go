// Package store persists contacts in a relational database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/rolodex/internal/model"
)

var (
	// ErrNotFound is returned when no contact with the requested id exists.
	ErrNotFound = errors.New("contact not found")

	// ErrConflict is returned when a contact was changed by someone else between reading
	// and writing it.
	ErrConflict = errors.New("contact was modified concurrently")
)

// contactColumns lists the columns of the contacts table in the order of model.Contact.
const contactColumns = `id, first_name, last_name, email, phone_number, contact_type, address,
	date_of_birth, last_contacted_date, notes, created_at_utc, updated_at_utc, version`

// Filter restricts the contacts returned by List. Empty fields do not restrict anything; the
// conditions of all set fields must hold.
type Filter struct {
	// FirstName must be contained in the first name.
	FirstName string

	// LastName must be contained in the last name.
	LastName string

	// Type must be equal to the contact type.
	Type *model.ContactType
}

// Store gives access to the contacts table.
type Store struct {
	db      *sqlx.DB
	dialect dialect

	// insert is a prepared statement for creating a contact.
	insert *sqlx.NamedStmt

	// selectWhereId is a prepared statement for selecting the contact with a given id.
	selectWhereId *sqlx.Stmt

	// update is a prepared statement that replaces a contact if its version is unchanged.
	update *sqlx.NamedStmt

	// deleteWhereId is a prepared statement for deleting the contact with a given id.
	deleteWhereId *sqlx.Stmt

	// countWhereId is a prepared statement for checking whether a contact exists.
	countWhereId *sqlx.Stmt
}

// New prepares all statements on the given database. The database can be a real database
// for production use or a mock database within unit tests; its driver name selects the SQL
// dialect.
func New(ctx context.Context, db *sqlx.DB) (*Store, error) {
	d, err := dialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, dialect: d}

	// Prepared statements offer a significant speed increase if executed many times.
	insertSQL := `
		INSERT INTO contacts (first_name, last_name, email, phone_number, contact_type, address,
			date_of_birth, last_contacted_date, notes, created_at_utc, updated_at_utc, version)
		VALUES (:first_name, :last_name, :email, :phone_number, :contact_type, :address,
			:date_of_birth, :last_contacted_date, :notes, :created_at_utc, :updated_at_utc, :version)`
	if d.returningId {
		insertSQL += " RETURNING id"
	}
	if s.insert, err = db.PrepareNamedContext(ctx, insertSQL); err != nil {
		return nil, fmt.Errorf("store: preparing insert: %w", err)
	}
	if s.selectWhereId, err = db.PreparexContext(ctx, db.Rebind(`
		SELECT `+contactColumns+` FROM contacts WHERE id = ?
	`)); err != nil {
		return nil, fmt.Errorf("store: preparing select: %w", err)
	}
	if s.update, err = db.PrepareNamedContext(ctx, `
		UPDATE contacts
		SET first_name = :first_name, last_name = :last_name, email = :email,
			phone_number = :phone_number, contact_type = :contact_type, address = :address,
			date_of_birth = :date_of_birth, last_contacted_date = :last_contacted_date,
			notes = :notes, updated_at_utc = :updated_at_utc, version = version + 1
		WHERE id = :id AND version = :version
	`); err != nil {
		return nil, fmt.Errorf("store: preparing update: %w", err)
	}
	if s.deleteWhereId, err = db.PreparexContext(ctx, db.Rebind(`
		DELETE FROM contacts WHERE id = ?
	`)); err != nil {
		return nil, fmt.Errorf("store: preparing delete: %w", err)
	}
	if s.countWhereId, err = db.PreparexContext(ctx, db.Rebind(`
		SELECT COUNT(*) FROM contacts WHERE id = ?
	`)); err != nil {
		return nil, fmt.Errorf("store: preparing count: %w", err)
	}
	return s, nil
}

// Migrate creates the contacts table if it does not exist yet. It has to run before New on a
// fresh database, since New prepares statements against the table.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	d, err := dialectFor(db.DriverName())
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		return fmt.Errorf("store: creating contacts table: %w", err)
	}
	return nil
}

// Ping verifies that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts the contact and sets its id and version. The timestamps are stored as given.
func (s *Store) Create(ctx context.Context, c *model.Contact) error {
	c.Version = 1
	if s.dialect.returningId {
		if err := s.insert.QueryRowxContext(ctx, c).Scan(&c.Id); err != nil {
			return fmt.Errorf("store: inserting contact: %w", err)
		}
		return nil
	}
	result, err := s.insert.ExecContext(ctx, c)
	if err != nil {
		return fmt.Errorf("store: inserting contact: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: reading id of new contact: %w", err)
	}
	c.Id = id
	return nil
}

// Get returns the contact with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (model.Contact, error) {
	var c model.Contact
	err := s.selectWhereId.GetContext(ctx, &c, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, ErrNotFound
	}
	if err != nil {
		return model.Contact{}, fmt.Errorf("store: selecting contact %d: %w", id, err)
	}
	return c, nil
}

// Exists reports whether a contact with the given id exists.
func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	var count int
	if err := s.countWhereId.GetContext(ctx, &count, id); err != nil {
		return false, fmt.Errorf("store: counting contact %d: %w", id, err)
	}
	return count > 0, nil
}

// List returns all contacts matching the filter, ordered by id.
func (s *Store) List(ctx context.Context, f Filter) ([]model.Contact, error) {
	var conditions []string
	var args []any
	if f.FirstName != "" {
		conditions = append(conditions, s.dialect.contains("first_name"))
		args = append(args, f.FirstName)
	}
	if f.LastName != "" {
		conditions = append(conditions, s.dialect.contains("last_name"))
		args = append(args, f.LastName)
	}
	if f.Type != nil {
		conditions = append(conditions, "contact_type = ?")
		args = append(args, string(*f.Type))
	}
	query := "SELECT " + contactColumns + " FROM contacts"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	contacts := []model.Contact{}
	if err := s.db.SelectContext(ctx, &contacts, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("store: selecting contacts: %w", err)
	}
	return contacts, nil
}

// ListWithBirthDate returns all contacts whose date of birth is known, ordered by id.
func (s *Store) ListWithBirthDate(ctx context.Context) ([]model.Contact, error) {
	contacts := []model.Contact{}
	err := s.db.SelectContext(ctx, &contacts, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE date_of_birth IS NOT NULL
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: selecting contacts with birth date: %w", err)
	}
	return contacts, nil
}

// ListStale returns all contacts that were never contacted or last contacted before cutoff.
// Contacts that were never contacted come first, the rest follow in ascending order of the
// last contact date.
func (s *Store) ListStale(ctx context.Context, cutoff model.Date) ([]model.StaleContact, error) {
	contacts := []model.StaleContact{}
	err := s.db.SelectContext(ctx, &contacts, s.db.Rebind(`
		SELECT id, first_name, last_name, last_contacted_date
		FROM contacts
		WHERE last_contacted_date IS NULL OR last_contacted_date < ?
		ORDER BY last_contacted_date IS NOT NULL, last_contacted_date, id`), cutoff)
	if err != nil {
		return nil, fmt.Errorf("store: selecting stale contacts: %w", err)
	}
	return contacts, nil
}

// Update replaces all fields of the stored contact except the creation timestamp. The
// contact's version must match the stored version; on success it is incremented.
//
// If no row was changed, Update checks whether the contact still exists and returns
// ErrNotFound or ErrConflict accordingly.
func (s *Store) Update(ctx context.Context, c *model.Contact) error {
	result, err := s.update.ExecContext(ctx, c)
	if err != nil {
		return fmt.Errorf("store: updating contact %d: %w", c.Id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: updating contact %d: %w", c.Id, err)
	}
	if rowsAffected == 0 {
		exists, err := s.Exists(ctx, c.Id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	c.Version++
	return nil
}

// Delete removes the contact with the given id permanently, or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.deleteWhereId.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("store: deleting contact %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: deleting contact %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the prepared statements. The database handle stays open; it belongs to the
// caller of New.
func (s *Store) Close() error {
	var errs []error
	for _, stmt := range []interface{ Close() error }{
		s.insert, s.selectWhereId, s.update, s.deleteWhereId, s.countWhereId,
	} {
		if err := stmt.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
