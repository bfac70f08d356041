package services

import (
	"bytes"
	"fmt"
	"time"

	apperrors "coaching-module/errors"
	"coaching-module/models"

	"github.com/jung-kurt/gofpdf"
)

// GenerateInvoice renders a PDF receipt for a completed payment and returns
// the document bytes. Only settled payments get an invoice.
func GenerateInvoice(p *models.Payment) ([]byte, error) {
	if p.Status != models.StatusCompleted &&
		p.Status != models.StatusRefunded &&
		p.Status != models.StatusPartiallyRefunded {
		return nil, apperrors.NewConflictError("invoice is only available for completed payments")
	}

	paidOn := time.Now()
	if p.PaidDate != nil {
		paidOn = *p.PaidDate
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 12, "Fee Payment Receipt")
	pdf.Ln(16)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Receipt No: %s", p.PaymentRef))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Date: %s", paidOn.Format("02 Jan 2006")))
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Student Details")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Name: %s", p.StudentName))
	pdf.Ln(8)
	if p.ClassName != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Class: %s", p.ClassName))
		pdf.Ln(8)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Payment Details")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Description: %s", p.Description))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Month: %s", p.Month))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Order ID: %s", p.OrderID))
	pdf.Ln(8)
	if p.RazorpayPaymentID != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Transaction ID: %s", p.RazorpayPaymentID))
		pdf.Ln(8)
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 10, fmt.Sprintf("Amount Paid: Rs. %.2f", p.Amount))
	pdf.Ln(12)

	if total := p.RefundedTotal(); total > 0 {
		pdf.SetFont("Arial", "", 11)
		pdf.Cell(0, 8, fmt.Sprintf("Refunded: Rs. %.2f (status: %s)", total, p.Status))
		pdf.Ln(10)
	}

	pdf.SetFont("Arial", "I", 9)
	pdf.Cell(0, 8, "This is a computer generated receipt and does not require a signature.")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("error generating invoice PDF: %w", err)
	}
	return buf.Bytes(), nil
}
