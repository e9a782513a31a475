package infra

// pdf.go: receipt rendering with go-pdf/fpdf.
// Narrow thermal-paper layout: pharmacy header, sale id and timestamp,
// item table, discount line, bold total, payment method.

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"farmapos/internal/model"

	"github.com/go-pdf/fpdf"
)

var paymentLabels = map[string]string{
	model.PaymentCash:     "Cash",
	model.PaymentCard:     "Card (POS)",
	model.PaymentTransfer: "Bank transfer",
}

// RenderReceipt writes a PDF receipt for sale to w. The sale must have its
// Items (with Product) and Attendant preloaded.
func RenderReceipt(w io.Writer, sale *model.Sale, pharmacyName string) error {
	pdf := buildReceipt(sale, pharmacyName)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf: render receipt: %w", err)
	}
	return nil
}

// WriteReceiptFile renders the receipt into dir/receipt_<saleID>.pdf and
// returns the file path. dir is created if needed.
func WriteReceiptFile(sale *model.Sale, dir, pharmacyName string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("receipt_%s.pdf", sale.ID))
	if err := buildReceipt(sale, pharmacyName).OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return path, nil
}

func buildReceipt(sale *model.Sale, pharmacyName string) *fpdf.Fpdf {
	// 74mm wide; height grows with the number of lines.
	height := 70.0 + 5.0*float64(len(sale.Items))
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 74, Ht: height},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 4)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, tr(pharmacyName), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, "Sales receipt", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(contentW, 4, "Sale "+sale.ID.String()[:8], "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, sale.CreatedAt.Format("02/01/2006  15:04"), "", 1, "L", false, 0, "")
	if sale.Attendant != nil {
		pdf.CellFormat(contentW, 4, tr("Attendant: "+sale.Attendant.Name), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Items ────────────────────────────────────────────────────────────────
	col1 := contentW * 0.52
	col2 := contentW * 0.16
	col3 := contentW * 0.32

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Product", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Qty", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 5, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for i := range sale.Items {
		item := &sale.Items[i]
		name := ""
		if item.Product != nil {
			name = item.Product.Name
		}
		if utf8.RuneCountInString(name) > 22 {
			name = string([]rune(name)[:21]) + "."
		}
		pdf.CellFormat(col1, 5, tr(name), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, fmt.Sprintf("x%d", item.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 5, item.LineTotal().StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Totals ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 7)
	if !sale.Discount.IsZero() {
		pdf.CellFormat(col1+col2, 5, "Subtotal:", "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, sale.Subtotal().StringFixed(2), "", 1, "R", false, 0, "")
		pdf.CellFormat(col1+col2, 5, "Discount:", "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, "-"+sale.Discount.StringFixed(2), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col1+col2, 6, "TOTAL:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 6, sale.Total.StringFixed(2), "", 1, "R", false, 0, "")

	pdf.Ln(1)
	pdf.SetFont("Helvetica", "", 7)
	label, ok := paymentLabels[sale.PaymentMethod]
	if !ok {
		label = sale.PaymentMethod
	}
	pdf.CellFormat(contentW, 4, "Paid by: "+label, "", 1, "L", false, 0, "")

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, "Thank you for your purchase", "", 1, "C", false, 0, "")
	return pdf
}
