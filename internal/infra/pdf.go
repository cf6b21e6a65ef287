package infra

// pdf.go: closing report generated with go-pdf/fpdf and attached to the
// closing-summary email. A4 portrait, one page:
//   - header with session id, opener/closer and times
//   - expected / counted / difference table per payment method
//   - denomination count
//   - withdrawal figures and notes

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"parkingcash/internal/dto"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// GenerateClosingReportPDF writes storagePath/cierre_{session_id}.pdf and
// returns its path. storagePath is created if needed.
func GenerateClosingReportPDF(ev dto.SessionClosedEvent, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("cierre_%s.pdf", ev.SessionID))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	// cp1252 covers accents and the euro sign with the core fonts
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30
	eur := func(d decimal.Decimal) string { return tr(d.StringFixed(2) + " €") }

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 15)
	pdf.CellFormat(contentW, 8, tr("Cierre de caja"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "Sesión "+ev.SessionID, "", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "", 9)
	info := [][2]string{
		{"Apertura", ev.OpenedAt + "  (" + ev.OpenedBy + ")"},
		{"Cierre", ev.ClosedAt + "  (" + ev.ClosedBy + ")"},
		{"Fondo inicial", eur(ev.InitialAmount)},
	}
	for _, row := range info {
		pdf.CellFormat(40, 5, tr(row[0]+":"), "", 0, "L", false, 0, "")
		pdf.CellFormat(contentW-40, 5, tr(row[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	// ── Amounts by method ─────────────────────────────────────────────────────
	colW := contentW / 4
	pdf.SetFont("Helvetica", "B", 9)
	for i, h := range []string{"Método", "Esperado", "Contado", "Diferencia"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(colW, 6, tr(h), "B", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	rows := []struct {
		label            string
		expected, actual decimal.Decimal
	}{
		{"Efectivo", ev.Expected.Cash, ev.Actual.Cash},
		{"Tarjeta", ev.Expected.Card, ev.Actual.Card},
		{"Transferencia", ev.Expected.Transfer, ev.Actual.Transfer},
	}
	for _, r := range rows {
		pdf.CellFormat(colW, 5, tr(r.label), "", 0, "L", false, 0, "")
		pdf.CellFormat(colW, 5, eur(r.expected), "", 0, "R", false, 0, "")
		pdf.CellFormat(colW, 5, eur(r.actual), "", 0, "R", false, 0, "")
		pdf.CellFormat(colW, 5, eur(r.actual.Sub(r.expected)), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(colW, 6, "TOTAL", "T", 0, "L", false, 0, "")
	pdf.CellFormat(colW, 6, eur(ev.Expected.Total), "T", 0, "R", false, 0, "")
	pdf.CellFormat(colW, 6, eur(ev.Actual.Total), "T", 0, "R", false, 0, "")
	pdf.CellFormat(colW, 6, eur(ev.Difference), "T", 1, "R", false, 0, "")
	pdf.Ln(4)

	// ── Denominations ─────────────────────────────────────────────────────────
	if len(ev.CashBreakdown) > 0 {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(contentW, 6, tr("Desglose de efectivo"), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		for _, face := range sortedFaces(ev.CashBreakdown) {
			count := ev.CashBreakdown[face]
			if count == 0 {
				continue
			}
			v, _ := decimal.NewFromString(face)
			pdf.CellFormat(colW, 5, eur(v), "", 0, "L", false, 0, "")
			pdf.CellFormat(colW, 5, fmt.Sprintf("x %d", count), "", 0, "R", false, 0, "")
			pdf.CellFormat(colW, 5, eur(v.Mul(decimal.NewFromInt(int64(count)))), "", 1, "R", false, 0, "")
		}
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(colW*2, 5, tr("Total contado en billetes y monedas"), "T", 0, "L", false, 0, "")
		pdf.CellFormat(colW, 5, eur(ev.CashBreakdownTotal), "T", 1, "R", false, 0, "")
		pdf.Ln(4)
	}

	// ── Withdrawal ────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 9)
	for _, row := range [][2]string{
		{"Retirada sugerida", eur(ev.SuggestedWithdrawal)},
		{"Retirada real", eur(ev.ActualWithdrawal)},
		{"Queda en caja", eur(ev.RemainingInRegister)},
	} {
		pdf.CellFormat(colW*2, 5, tr(row[0]+":"), "", 0, "L", false, 0, "")
		pdf.CellFormat(colW, 5, row[1], "", 1, "R", false, 0, "")
	}
	if ev.Notes != nil && *ev.Notes != "" {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(contentW, 5, tr("Notas: "+*ev.Notes), "", "L", false)
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

// sortedFaces orders denomination keys from the largest face value down.
func sortedFaces(b map[string]int) []string {
	faces := make([]string, 0, len(b))
	for k := range b {
		faces = append(faces, k)
	}
	sort.Slice(faces, func(i, j int) bool {
		a, _ := decimal.NewFromString(faces[i])
		c, _ := decimal.NewFromString(faces[j])
		return a.GreaterThan(c)
	})
	return faces
}
