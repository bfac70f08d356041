package services

import (
	"bytes"
	"fmt"

	"coaching-module/models"

	"github.com/xuri/excelize/v2"
)

// ExportPaymentsExcel builds an xlsx workbook from a payment listing for the
// admin export endpoint and returns the file bytes.
func ExportPaymentsExcel(payments []models.Payment) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Payments"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Receipt", "Student", "Class", "Amount", "Month", "Status", "Order ID", "Transaction ID", "Paid Date", "Refunded"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, p := range payments {
		row := i + 2
		paidDate := ""
		if p.PaidDate != nil {
			paidDate = p.PaidDate.Format("2006-01-02 15:04")
		}
		values := []interface{}{
			p.PaymentRef,
			p.StudentName,
			p.ClassName,
			p.Amount,
			p.Month,
			p.Status,
			p.OrderID,
			p.RazorpayPaymentID,
			paidDate,
			p.RefundedTotal(),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("error writing payments workbook: %w", err)
	}
	return buf.Bytes(), nil
}
