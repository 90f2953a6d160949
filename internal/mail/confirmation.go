package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

// ConfirmationSubject is the subject line of payment confirmation emails.
const ConfirmationSubject = "✅ Pago confirmado - Ticket de reserva"

// Confirmation is the data shown in the payment confirmation body.
type Confirmation struct {
	ReservationID string
	Category      string
	TotalPaid     string
	Year          int
}

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<div style="font-family: Arial, Helvetica, sans-serif; background-color: #f4f6f8; padding: 30px;">
  <div style="max-width: 600px; margin: auto; background-color: #ffffff; border-radius: 8px; overflow: hidden;">
    <div style="background-color: #2563eb; color: #ffffff; padding: 20px;">
      <h2 style="margin: 0;">Pago confirmado</h2>
    </div>
    <div style="padding: 24px; color: #333333;">
      <p style="font-size: 16px;">Hola,<br />Tu pago ha sido procesado correctamente. A continuación encontrarás el detalle de tu reserva:</p>
      <div style="background-color: #f9fafb; border: 1px solid #e5e7eb; border-radius: 6px; padding: 16px; margin: 20px 0;">
        <p style="margin: 6px 0;"><strong>ID de reserva:</strong> {{.ReservationID}}</p>
        <p style="margin: 6px 0;"><strong>Categoría:</strong> {{.Category}}</p>
        <p style="margin: 6px 0;"><strong>Total pagado:</strong> <span style="color: #16a34a; font-weight: bold;">${{.TotalPaid}}</span></p>
      </div>
      <p style="font-size: 15px;"><strong>Tu ticket digital va adjunto</strong> en este correo en formato PDF.</p>
    </div>
    <div style="background-color: #f1f5f9; padding: 16px; text-align: center; font-size: 12px; color: #6b7280;">
      <p style="margin: 0;">{{.Year}} Sistema de Reservas Express<br />Este es un correo automático, por favor no respondas a este mensaje.</p>
    </div>
  </div>
</div>
`))

// RenderConfirmation returns the HTML body for c.
func RenderConfirmation(c Confirmation) (string, error) {
	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, c); err != nil {
		return "", fmt.Errorf("render confirmation: %w", err)
	}
	return buf.String(), nil
}
