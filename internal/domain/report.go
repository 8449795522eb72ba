package domain

import (
	"errors"
	"time"
)

const (
	MaxReasonLen  = 200
	MaxDetailsLen = 4000
)

var ErrReportInvalid = errors.New("invalid report")

type ReportID string

type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportResolved ReportStatus = "resolved"
)

type Report struct {
	ID         ReportID     `json:"id"`
	Status     ReportStatus `json:"status"`
	ReporterID UserID       `json:"reporterId"`
	GameID     GameID       `json:"gameId"`
	Reason     string       `json:"reason"`
	Details    string       `json:"details,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
}

func (r *Report) Validate() error {
	if r.GameID == "" || r.Reason == "" {
		return ErrReportInvalid
	}
	if len(r.Reason) > MaxReasonLen || len(r.Details) > MaxDetailsLen {
		return ErrReportInvalid
	}
	return nil
}
