// Package ticket renders the PDF document attached to confirmation
// emails and served by the ticket download endpoint.
package ticket

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/iliyamo/express-reservations/internal/model"
	"github.com/iliyamo/express-reservations/internal/utils"
)

// Fields is the data printed on a ticket.  Dates are already formatted as
// YYYY-MM-DD.
type Fields struct {
	ReservationID string
	Email         string
	Category      string
	Quantity      int
	Total         model.Money
	StartDate     string
	EndDate       string
}

// FieldsFrom extracts ticket fields from a stored reservation.
func FieldsFrom(res model.Reservation) Fields {
	return Fields{
		ReservationID: res.ID,
		Email:         res.Email,
		Category:      res.Category,
		Quantity:      res.Quantity,
		Total:         res.Total,
		StartDate:     utils.FormatDate(res.StartDate),
		EndDate:       utils.FormatDate(res.EndDate),
	}
}

// Renderer turns ticket fields into a document.
type Renderer interface {
	Render(f Fields) ([]byte, error)
}

// PDFRenderer draws an A4 ticket with the core Helvetica font.
type PDFRenderer struct {
	title  string
	footer string
}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{
		title:  "Reserva Confirmada",
		footer: "Gracias por usar Sistema de Reservas Express",
	}
}

// Render returns the encoded PDF.  Nothing is written to disk.
func (r *PDFRenderer) Render(f Fields) ([]byte, error) {
	if f.ReservationID == "" {
		return nil, fmt.Errorf("render ticket: missing reservation id")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetTitle(fmt.Sprintf("reservation-%s", f.ReservationID), true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, tr(r.title), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	line := func(text string) {
		pdf.CellFormat(0, 7, tr(text), "", 1, "L", false, 0, "")
	}

	pdf.SetFont("Helvetica", "", 12)
	line("ID de Reserva: " + f.ReservationID)
	line("Email: " + f.Email)
	pdf.Ln(5)

	line("Categoría: " + f.Category)
	line(fmt.Sprintf("Cantidad: %d", f.Quantity))
	line("Total: $" + f.Total.String())
	pdf.Ln(5)

	line("Desde: " + f.StartDate)
	line("Hasta: " + f.EndDate)

	pdf.Ln(14)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(r.footer), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render ticket: %w", err)
	}
	return buf.Bytes(), nil
}
