package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/web"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/api/weberr"
	"github.com/DevRafa2007/aprendendo-juntos-ia-sub001/core/claims"
	"github.com/jmoiron/sqlx"
	"github.com/xuri/excelize/v2"
)

var reportHeader = []string{
	"Transaction", "Course", "Student", "Session", "Amount", "Currency", "Status", "Created",
}

// HandleExportTransactions streams the instructor's transaction history
// as an xlsx workbook.
func HandleExportTransactions(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		ts, err := FetchTransactionsByInstructor(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		f := excelize.NewFile()
		defer f.Close()

		const sheet = "Transactions"
		f.SetSheetName("Sheet1", sheet)

		for i, h := range reportHeader {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, h)
		}

		for row, t := range ts {
			values := []any{
				t.ID,
				t.CourseID,
				t.UserID,
				t.CheckoutSessionID,
				float64(t.Amount) / 100,
				t.Currency,
				string(t.Status),
				t.CreatedAt.Format(time.RFC3339),
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
				f.SetCellValue(sheet, cell, v)
			}
		}

		name := fmt.Sprintf("transactions-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.WriteHeader(http.StatusOK)

		if err := f.Write(w); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		return nil
	}
}
