package report

import (
	"io"

	"github.com/go-pdf/fpdf"
)

// WritePDF renders the report of doc as a paginated Letter-size PDF with a
// title, headings, bullet lists and paragraphs.
func WritePDF(w io.Writer, doc Document) error {
	title := doc.title()

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("socflow", true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, pdf.UnicodeTranslatorFromDescriptor("")("Page {nb}"), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	left, _, _, _ := pdf.GetMargins()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(0, 0, 139)
	pdf.MultiCell(0, 10, tr(title), "", "C", false)
	if doc.RunID != "" {
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(100, 100, 100)
		pdf.MultiCell(0, 5, tr("Run "+doc.RunID), "", "C", false)
	}
	pdf.Ln(6)

	for _, b := range Parse(doc.Report) {
		switch b.Kind {
		case BlockHeading:
			pdf.Ln(3)
			pdf.SetFont("Helvetica", "B", 14)
			pdf.SetTextColor(0, 0, 139)
			pdf.MultiCell(0, 8, tr(b.Text), "", "L", false)
			pdf.Ln(2)
		case BlockList:
			pdf.SetFont("Helvetica", "", 11)
			pdf.SetTextColor(0, 0, 0)
			for _, item := range b.Items {
				pdf.SetX(left + 6)
				pdf.MultiCell(0, 6, tr("• "+item), "", "L", false)
			}
			pdf.Ln(2)
		default:
			pdf.SetFont("Helvetica", "", 11)
			pdf.SetTextColor(0, 0, 0)
			pdf.MultiCell(0, 6, tr(b.Text), "", "L", false)
			pdf.Ln(2)
		}
	}

	return pdf.Output(w)
}
