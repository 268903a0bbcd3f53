package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"branchbooker/internal/models"
	"branchbooker/internal/timeutil"
	"branchbooker/pkg/response"
)

// Storage persists confirmed bookings. The upstream scheduling API has
// no read-back endpoint for a single appointment, so the confirmation
// view and post-confirmation cancel resolve bookings here.
type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// SaveConfirmation records a booking the upstream server accepted,
// together with the branch snapshot shown on the confirmation view.
func (s *Storage) SaveConfirmation(ctx context.Context, b *models.ConfirmedBooking) error {
	const op = "storage.postgres.SaveConfirmation"

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bookings
		(appointment_id, branch_id, branch_name, branch_address,
		 branch_latitude, branch_longitude,
		 booking_date, start_minutes, end_minutes,
		 email, phone, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		b.AppointmentID,
		b.Branch.BranchID,
		b.Branch.Name,
		b.Branch.Address,
		b.Branch.Latitude,
		b.Branch.Longitude,
		b.Date,
		int(b.Start),
		int(b.End),
		b.Email,
		b.Phone,
		b.Reason,
		string(b.Status),
		b.CreatedAt,
	)
	if err != nil {
		sqlErr, ok := err.(*pq.Error)
		if ok && sqlErr.Code == "23505" {
			return fmt.Errorf("%s: %w", op, response.ErrConflict)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// GetConfirmation returns a stored booking by its upstream appointment id.
func (s *Storage) GetConfirmation(ctx context.Context, appointmentID int64) (*models.ConfirmedBooking, error) {
	const op = "storage.postgres.GetConfirmation"

	var (
		b         models.ConfirmedBooking
		start     int
		end       int
		status    string
		createdAt time.Time
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT branch_id, branch_name, branch_address,
			branch_latitude, branch_longitude,
			booking_date, start_minutes, end_minutes,
			email, phone, reason, status, created_at
		FROM bookings WHERE appointment_id=$1`, appointmentID).
		Scan(
			&b.Branch.BranchID,
			&b.Branch.Name,
			&b.Branch.Address,
			&b.Branch.Latitude,
			&b.Branch.Longitude,
			&b.Date,
			&start,
			&end,
			&b.Email,
			&b.Phone,
			&b.Reason,
			&status,
			&createdAt,
		)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	b.AppointmentID = appointmentID
	b.Start = timeutil.Minutes(start)
	b.End = timeutil.Minutes(end)
	b.Status = models.BookingStatus(status)
	b.CreatedAt = createdAt

	return &b, nil
}

// MarkCancelled flips a booking to cancelled. Cancelling twice is fine;
// the row just stays cancelled.
func (s *Storage) MarkCancelled(ctx context.Context, appointmentID int64) error {
	const op = "storage.postgres.MarkCancelled"

	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET status=$1 WHERE appointment_id=$2`,
		string(models.BookingCancelled), appointmentID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}
