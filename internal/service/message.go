package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"payconfirm/internal/domain"
	"payconfirm/internal/mailer"
)

// zeroDecimalCurrencies have no minor unit.
var zeroDecimalCurrencies = map[string]bool{"JPY": true}

// RenderMessage turns a notification event into a message for adminEmail or
// the customer, depending on the event's audience.
func RenderMessage(ev domain.NotificationEvent, adminEmail string) mailer.Message {
	msg := mailer.Message{ID: uuid.New().String()}
	intent := ev.Intent

	switch ev.Audience {
	case domain.AudienceAdmin:
		msg.To = adminEmail
		msg.ReplyTo = intent.Contact.Email
		msg.Subject = adminSubject(ev)
		msg.Body = adminBody(ev)
	default:
		msg.To = intent.Contact.Email
		msg.ReplyTo = adminEmail
		msg.Subject = customerSubject(ev)
		msg.Body = customerBody(ev)
	}

	return msg
}

func customerSubject(ev domain.NotificationEvent) string {
	if ev.Status == domain.StatusAwaitingManualTransfer {
		return "Bank Transfer Instructions - Ref " + ev.Intent.Reference()
	}
	return "Payment Confirmed - Meeting Scheduled"
}

func adminSubject(ev domain.NotificationEvent) string {
	if ev.Status == domain.StatusAwaitingManualTransfer {
		return "Pending Bank Transfer - " + ev.Intent.Contact.Name
	}
	return "New Meeting Scheduled - " + ev.Intent.Contact.Name
}

func customerBody(ev domain.NotificationEvent) string {
	intent := ev.Intent
	var b strings.Builder

	fmt.Fprintf(&b, "Hello %s,\n\n", nonEmpty(intent.Contact.Name, "there"))
	if ev.Status == domain.StatusAwaitingManualTransfer {
		b.WriteString("Your booking is reserved. Please complete the bank transfer below and\n")
		b.WriteString("include your reference so we can match the payment.\n\n")
	} else {
		b.WriteString("Your payment has been received and your meeting is confirmed.\n\n")
	}

	writeMeeting(&b, ev)

	if ev.BankDetails != nil {
		b.WriteString("\nTRANSFER DETAILS\n")
		b.WriteString("-------------------------------------\n")
		writeBankDetails(&b, ev.BankDetails)
	}

	b.WriteString("\nThank you for booking with us.\n")
	return b.String()
}

func adminBody(ev domain.NotificationEvent) string {
	intent := ev.Intent
	var b strings.Builder

	if ev.Status == domain.StatusAwaitingManualTransfer {
		b.WriteString("A customer chose bank transfer. Confirm the booking once funds arrive.\n\n")
	} else {
		fmt.Fprintf(&b, "New meeting booking (%s).\n\n", intent.Rail)
	}

	b.WriteString("CUSTOMER\n")
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "Name:  %s\n", intent.Contact.Name)
	fmt.Fprintf(&b, "Email: %s\n", intent.Contact.Email)
	fmt.Fprintf(&b, "Phone: %s\n\n", intent.Contact.Phone)

	writeMeeting(&b, ev)
	fmt.Fprintf(&b, "Payment:   %s\n", intent.ID)
	fmt.Fprintf(&b, "Status:    %s\n", ev.Status)
	return b.String()
}

func writeMeeting(b *strings.Builder, ev domain.NotificationEvent) {
	intent := ev.Intent
	b.WriteString("BOOKING\n")
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(b, "Reference: %s\n", intent.Reference())
	fmt.Fprintf(b, "Date:      %s\n", intent.Meeting.Date)
	fmt.Fprintf(b, "Time:      %s\n", intent.Meeting.Time)
	if intent.Amount > 0 {
		symbol := ""
		if ev.BankDetails != nil {
			symbol = ev.BankDetails.Symbol
		}
		fmt.Fprintf(b, "Amount:    %s\n", FormatAmount(intent.Amount, intent.Currency, symbol))
	}
}

func writeBankDetails(b *strings.Builder, d *domain.BankDetails) {
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(b, "%-15s %s\n", label+":", value)
		}
	}
	line("Bank", d.BankName)
	line("Account name", d.AccountName)
	line("Account number", d.AccountNumber)
	line("SWIFT", d.SwiftCode)
	line("Routing number", d.RoutingNumber)
	line("IBAN", d.IBAN)
	line("Sort code", d.SortCode)
	line("BSB", d.BSB)
	line("Branch code", d.BranchCode)
	line("IFSC", d.IFSCCode)
	line("Bank code", d.BankCode)
}

// FormatAmount renders minor units as a major-unit amount, e.g. 5000 USD as
// "$50.00 USD".
func FormatAmount(minor int64, currency, symbol string) string {
	currency = strings.ToUpper(currency)
	var amount string
	if zeroDecimalCurrencies[currency] {
		amount = fmt.Sprintf("%d", minor)
	} else {
		sign := ""
		if minor < 0 {
			sign = "-"
			minor = -minor
		}
		amount = fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
	}
	return strings.TrimSpace(symbol + amount + " " + currency)
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
