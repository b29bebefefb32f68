package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/shopspring/decimal"
)

// NormalizePhone turns a merchant WhatsApp number into the digits wa.me
// expects. Only Indonesian numbers (+62, 62 or a leading 0) are accepted.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	p := b.String()
	switch {
	case strings.HasPrefix(p, "+62"):
		p = p[1:]
	case strings.HasPrefix(p, "62"):
	case strings.HasPrefix(p, "0"):
		p = "62" + p[1:]
	default:
		return "", orders.ErrMissingMerchantContact
	}
	if strings.Contains(p, "+") || len(p) < 9 {
		return "", orders.ErrMissingMerchantContact
	}
	return p, nil
}

// FormatRupiah renders an amount the way id-ID prints IDR: no decimals,
// dot as thousands separator.
func FormatRupiah(d decimal.Decimal) string {
	s := d.Round(0).String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-Rp " + b.String()
	}
	return "Rp " + b.String()
}

// OrderMessage is the pre-filled chat text sent to the merchant.
func OrderMessage(o orders.Order, customerName string) string {
	var b strings.Builder
	b.WriteString("Pesanan dari " + o.MerchantName)
	if customerName != "" {
		b.WriteString(" - " + customerName)
	}
	if o.ID != "" {
		b.WriteString("\nNo. Pesanan: " + o.ID)
	}
	b.WriteString("\n\n")
	for i, it := range o.Items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%dx %s - %s", it.Quantity, it.Name, FormatRupiah(it.Subtotal))
	}
	b.WriteString("\n\nTotal: " + FormatRupiah(o.Subtotal))
	if o.Notes != "" {
		b.WriteString("\n\nCatatan: " + o.Notes)
	}
	b.WriteString("\n\nTerima kasih!")
	return b.String()
}

// ChatLink builds the click-to-chat deep link for an already normalised phone.
func ChatLink(phone, text string) string {
	return "https://wa.me/" + phone + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

// StatusInquiryLink lets the buyer ask the merchant about an order.
func StatusInquiryLink(phone, orderID string) (string, error) {
	p, err := NormalizePhone(phone)
	if err != nil {
		return "", err
	}
	return ChatLink(p, "Halo, saya ingin menanyakan status pesanan dengan nomor: "+orderID), nil
}
