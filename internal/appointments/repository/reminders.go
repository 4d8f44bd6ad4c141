package repository

import (
	"context"
	"fmt"
	"time"

	"taller_portal_backend/internal/appointments/domain"

	"github.com/google/uuid"
)

// ListDueReminders returns not-cancelled appointments dated inside the
// window that have not had a reminder sent yet.
func (r *Repository) ListDueReminders(ctx context.Context, from, to time.Time) ([]*domain.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status != 'cancelled'
		  AND no_show = FALSE
		  AND reminder_sent_at IS NULL
		  AND appointment_date >= $1
		  AND appointment_date < $2
		ORDER BY appointment_date, start_time`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()

	var out []*domain.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkReminderSent stamps the reminder so re-runs never send twice.
func (r *Repository) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments SET reminder_sent_at = $2, updated_at = NOW()
		WHERE id = $1 AND reminder_sent_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}
