package job

import (
	"time"

	"github.com/SougoEdo/tardis-api-middleware/internal/apperror"
)

const dateFormat = "2006-01-02"

type SubmitRequest struct {
	Exchange   string   `json:"exchange"`
	DataTypes  []string `json:"data_types"`
	Symbols    []string `json:"symbols"`
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	OutputPath string   `json:"output_path,omitempty"`
}

func (r SubmitRequest) Validate() *apperror.AppError {
	if r.Exchange == "" {
		return apperror.New(apperror.BadRequest, "exchange is required")
	}
	if len(r.Symbols) == 0 {
		return apperror.New(apperror.BadRequest, "at least one symbol is required")
	}
	start, err := time.Parse(dateFormat, r.StartDate)
	if err != nil {
		return apperror.New(apperror.BadRequest, "invalid start_date, expected YYYY-MM-DD")
	}
	end, err := time.Parse(dateFormat, r.EndDate)
	if err != nil {
		return apperror.New(apperror.BadRequest, "invalid end_date, expected YYYY-MM-DD")
	}
	if end.Before(start) {
		return apperror.New(apperror.BadRequest, "end_date must not be before start_date")
	}
	return nil
}

type GetJobRequest struct {
	ID int64
}

func (r GetJobRequest) Validate() *apperror.AppError {
	if r.ID <= 0 {
		return apperror.New(apperror.BadRequest, "invalid job id")
	}
	return nil
}

type ListJobsRequest struct {
	Limit int
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Normalize applies the default and the cap to the requested limit.
func (r ListJobsRequest) Normalize() int {
	if r.Limit <= 0 {
		return defaultListLimit
	}
	if r.Limit > maxListLimit {
		return maxListLimit
	}
	return r.Limit
}
