package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yare-hub/classroom/internal/billing"
)

const confirmationSubject = "Payment received - Yare Learning Hub"

var confirmationHTML = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <p>Hello {{.Name}},</p>
  <p>We have received your payment (reference <strong>{{.Reference}}</strong>) on {{.PaidAt}}.</p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><th align="left">Plan</th><th align="left">Term</th><th align="right">Amount</th><th align="left">Active until</th></tr>
    {{range .Lines}}<tr><td>{{.Plan}}</td><td>{{.Term}}</td><td align="right">{{.Amount}}</td><td>{{.Until}}</td></tr>
    {{end}}
  </table>
  <p><strong>Total: {{.Total}}</strong></p>
  <p>Thank you for learning with Yare.</p>
</body>
</html>`))

type confirmationLine struct {
	Plan   string
	Term   string
	Amount string
	Until  string
}

type confirmationView struct {
	Name      string
	Reference string
	PaidAt    string
	Lines     []confirmationLine
	Total     string
}

func formatAmount(currency string, cents int64) string {
	return fmt.Sprintf("%s %d.%02d", currency, cents/100, cents%100)
}

func confirmationData(evt billing.PaymentConfirmed) confirmationView {
	name := strings.TrimSpace(evt.CustomerName)
	if name == "" {
		name = "there"
	}
	v := confirmationView{Name: name, Reference: evt.Reference, PaidAt: evt.PaidAt.Format("2 Jan 2006 15:04")}
	var total int64
	currency := "NGN"
	for _, lf := range evt.LessonFees {
		if lf.Currency != "" {
			currency = lf.Currency
		}
		term := lf.Duration
		if t, err := billing.ParseTerm(lf.Duration); err == nil {
			term = t.String()
		}
		until := "-"
		if lf.ExpiresAt != nil {
			until = lf.ExpiresAt.Format("2 Jan 2006")
		}
		v.Lines = append(v.Lines, confirmationLine{Plan: lf.PlanName, Term: term, Amount: formatAmount(lf.Currency, lf.AmountCents), Until: until})
		total += lf.AmountCents
	}
	v.Total = formatAmount(currency, total)
	return v
}

// renderConfirmation builds the payment confirmation message for evt.
func renderConfirmation(evt billing.PaymentConfirmed) (Message, error) {
	view := confirmationData(evt)
	var html bytes.Buffer
	if err := confirmationHTML.Execute(&html, view); err != nil {
		return Message{}, fmt.Errorf("render confirmation: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hello %s,\n\nWe have received your payment (reference %s) on %s.\n\n", view.Name, view.Reference, view.PaidAt)
	for _, l := range view.Lines {
		fmt.Fprintf(&text, "- %s, %s: %s (active until %s)\n", l.Plan, l.Term, l.Amount, l.Until)
	}
	fmt.Fprintf(&text, "\nTotal: %s\n\nThank you for learning with Yare.\n", view.Total)

	return Message{
		To:      evt.Email,
		ToName:  strings.TrimSpace(evt.CustomerName),
		Subject: confirmationSubject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
