package worker

// email_worker.go: sends the closing summary (text body + PDF report) to the
// configured recipients for each cierre_caja job.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"parkingcash/internal/dto"
	"parkingcash/internal/infra"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Sender delivers one email. *infra.Mailer implements it.
type Sender interface {
	Send(to []string, subject, body, attachPath string) error
}

// ClosingEmailWorker handles JobCierreCaja.
type ClosingEmailWorker struct {
	sender     Sender
	cb         *infra.CircuitBreaker
	recipients []string
	pdfDir     string
}

func NewClosingEmailWorker(sender Sender, cb *infra.CircuitBreaker, recipients []string, pdfDir string) *ClosingEmailWorker {
	return &ClosingEmailWorker{sender: sender, cb: cb, recipients: recipients, pdfDir: pdfDir}
}

// Process renders and sends the summary. A bad payload is dropped (a retry
// can't fix it); send failures are returned so the pool retries.
func (w *ClosingEmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var ev dto.SessionClosedEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return nil
	}
	if len(w.recipients) == 0 {
		log.Warn().Str("session_id", ev.SessionID).Msg("email_worker: CIERRE_EMAIL_TO vacío, se omite el envío")
		return nil
	}

	pdfPath := ""
	if w.pdfDir != "" {
		p, err := infra.GenerateClosingReportPDF(ev, w.pdfDir)
		if err != nil {
			log.Warn().Err(err).Str("session_id", ev.SessionID).Msg("email_worker: PDF no generado, se envía sin adjunto")
		} else {
			pdfPath = p
		}
	}

	send := func() error {
		return w.sender.Send(w.recipients, ClosingSubject(ev), ClosingBody(ev), pdfPath)
	}
	var err error
	if w.cb != nil {
		err = w.cb.Execute(send)
	} else {
		err = send()
	}
	if err != nil {
		return fmt.Errorf("email_worker: send closing summary: %w", err)
	}
	log.Info().Str("session_id", ev.SessionID).Strs("to", w.recipients).Msg("email_worker: resumen de cierre enviado")
	return nil
}

func ClosingSubject(ev dto.SessionClosedEvent) string {
	day := ev.ClosedAt
	if len(day) >= 10 {
		day = day[:10]
	}
	return fmt.Sprintf("Cierre de caja %s · diferencia %s €", day, signed(ev.Difference))
}

// ClosingBody is the plain-text summary sent in the email body.
func ClosingBody(ev dto.SessionClosedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cierre de caja\n\n")
	fmt.Fprintf(&b, "Sesión:   %s\n", ev.SessionID)
	fmt.Fprintf(&b, "Apertura: %s (%s)\n", ev.OpenedAt, ev.OpenedBy)
	fmt.Fprintf(&b, "Cierre:   %s (%s)\n", ev.ClosedAt, ev.ClosedBy)
	fmt.Fprintf(&b, "Fondo inicial: %s €\n\n", ev.InitialAmount.StringFixed(2))

	fmt.Fprintf(&b, "%-14s %12s %12s %12s\n", "Método", "Esperado", "Contado", "Diferencia")
	line := func(label string, expected, actual decimal.Decimal) {
		fmt.Fprintf(&b, "%-14s %12s %12s %12s\n", label,
			expected.StringFixed(2), actual.StringFixed(2), signed(actual.Sub(expected)))
	}
	line("Efectivo", ev.Expected.Cash, ev.Actual.Cash)
	line("Tarjeta", ev.Expected.Card, ev.Actual.Card)
	line("Transferencia", ev.Expected.Transfer, ev.Actual.Transfer)
	line("TOTAL", ev.Expected.Total, ev.Actual.Total)

	fmt.Fprintf(&b, "\nRetirada sugerida: %s €\n", ev.SuggestedWithdrawal.StringFixed(2))
	fmt.Fprintf(&b, "Retirada real:     %s €\n", ev.ActualWithdrawal.StringFixed(2))
	fmt.Fprintf(&b, "Queda en caja:     %s €\n", ev.RemainingInRegister.StringFixed(2))
	if len(ev.CashBreakdown) > 0 {
		fmt.Fprintf(&b, "Contado en billetes y monedas: %s €\n", ev.CashBreakdownTotal.StringFixed(2))
	}
	if ev.Notes != nil && *ev.Notes != "" {
		fmt.Fprintf(&b, "\nNotas: %s\n", *ev.Notes)
	}
	return b.String()
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}
