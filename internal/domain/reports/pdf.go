package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

var summaryColumns = []struct {
	title string
	width float64
}{
	{"Employee", 62},
	{"Leave type", 48},
	{"Requests", 20},
	{"Approved", 20},
	{"Pending", 20},
}

// RenderSummaryPDF draws the leave summary as an A4 table.
func RenderSummaryPDF(summary LeaveSummary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Leave summary %d", summary.Year), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Leave summary %d", summary.Year))
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Scope: %s", summary.Scope))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated %s by %s", summary.GeneratedAt.Format(time.RFC1123), summary.GeneratedBy))
	pdf.Ln(10)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for _, col := range summaryColumns {
			pdf.CellFormat(col.width, 7, col.title, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 10)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	var approved, pending int
	for _, row := range summary.Rows {
		if pdf.GetY()+7 > pageHeight-bottom-10 {
			pdf.AddPage()
			header()
		}
		cells := []string{
			tr(row.EmployeeName),
			tr(row.LeaveType),
			fmt.Sprintf("%d", row.Requests),
			fmt.Sprintf("%d", row.ApprovedDays),
			fmt.Sprintf("%d", row.PendingDays),
		}
		for i, col := range summaryColumns {
			align := "L"
			if i >= 2 {
				align = "R"
			}
			pdf.CellFormat(col.width, 7, cells[i], "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
		approved += row.ApprovedDays
		pending += row.PendingDays
	}

	if len(summary.Rows) == 0 {
		pdf.CellFormat(0, 7, "No leave requests in scope.", "1", 1, "C", false, 0, "")
	} else {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(summaryColumns[0].width+summaryColumns[1].width+summaryColumns[2].width, 7, "Total days", "1", 0, "R", false, 0, "")
		pdf.CellFormat(summaryColumns[3].width, 7, fmt.Sprintf("%d", approved), "1", 0, "R", false, 0, "")
		pdf.CellFormat(summaryColumns[4].width, 7, fmt.Sprintf("%d", pending), "1", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
