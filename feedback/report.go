package feedback

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/warp/paycalc/store/sqlite"
)

// ReportSource lists stored submissions, newest first. *sqlite.Store
// satisfies it.
type ReportSource interface {
	ListFeedback(ctx context.Context, limit int) ([]sqlite.FeedbackRecord, error)
}

type reportRow struct {
	ID         string `csv:"id"`
	ReceivedAt string `csv:"received_at"`
	Status     string `csv:"status"`
	Attempts   int    `csv:"attempts"`
	Name       string `csv:"name"`
	Email      string `csv:"email"`
	Subject    string `csv:"subject"`
	Message    string `csv:"message"`
	LastError  string `csv:"last_error"`
}

// WriteReport writes the latest limit submissions to w as CSV and returns
// how many rows were written. The header is written even when there are none.
func WriteReport(ctx context.Context, w io.Writer, src ReportSource, limit int) (int, error) {
	recs, err := src.ListFeedback(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list feedback: %w", err)
	}
	rows := make([]reportRow, len(recs))
	for i, rec := range recs {
		status := "pending"
		if rec.Delivered() {
			status = "delivered"
		}
		rows[i] = reportRow{
			ID:         rec.ID,
			ReceivedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
			Status:     status,
			Attempts:   rec.Attempts,
			Name:       rec.Name,
			Email:      rec.Email,
			Subject:    rec.Subject,
			Message:    rec.Message,
			LastError:  rec.LastError,
		}
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return 0, fmt.Errorf("failed to write feedback report: %w", err)
	}
	return len(rows), nil
}
