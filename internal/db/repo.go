package db

import (
	"context"
	"database/sql"

	"postop-monitor/pkg"
)

// Repository wraps the append-only risk/alert log. A single postgres
// database backs both tables.
type Repository struct {
	DB *sql.DB
}

// NewRepository constructs a Repository from an existing sql.DB. The caller
// is responsible for managing the connection lifecycle.
func NewRepository(db *sql.DB) *Repository { return &Repository{DB: db} }

// AppendRisk inserts one risk checkpoint for the patient.
func (r *Repository) AppendRisk(ctx context.Context, patientID string, score int, trend pkg.TrendStatus) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO risk_history (patient_id, risk_score, trend_status)
         VALUES ($1, $2, $3)`,
		patientID, score, string(trend),
	)
	return err
}

// RiskHistory returns all checkpoints for a patient ordered by time
// ascending.
func (r *Repository) RiskHistory(ctx context.Context, patientID string) ([]pkg.RiskHistoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT patient_id, date, risk_score, trend_status
         FROM risk_history
         WHERE patient_id = $1
         ORDER BY date ASC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []pkg.RiskHistoryEntry
	for rows.Next() {
		var e pkg.RiskHistoryEntry
		if err := rows.Scan(&e.PatientID, &e.Date, &e.RiskScore, &e.TrendStatus); err != nil {
			return nil, err
		}
		history = append(history, e)
	}
	return history, rows.Err()
}

// AppendAlert inserts one doctor alert record.
func (r *Repository) AppendAlert(ctx context.Context, alert pkg.DoctorAlert) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO doctor_alerts (patient_id, risk_score, risk_level, status_message, created_at)
         VALUES ($1, $2, $3, $4, $5)`,
		alert.PatientID, alert.RiskScore, string(alert.RiskLevel), alert.StatusMessage, alert.CreatedAt,
	)
	return err
}

// RecentAlerts returns the most recent 100 alerts, newest first.
func (r *Repository) RecentAlerts(ctx context.Context) ([]pkg.DoctorAlert, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT patient_id, risk_score, risk_level, status_message, created_at
         FROM doctor_alerts
         ORDER BY created_at DESC
         LIMIT 100`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var alerts []pkg.DoctorAlert
	for rows.Next() {
		var a pkg.DoctorAlert
		if err := rows.Scan(&a.PatientID, &a.RiskScore, &a.RiskLevel, &a.StatusMessage, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
