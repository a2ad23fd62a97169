// Package salessheet renders a plain-text snapshot of a session cart that the
// host can hand to the client without ending the session.
package salessheet

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/cimillas/live-commerce/internal/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Line struct {
	BatchCode   string
	ProductName string
	Status      domain.ItemStatus
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

type Sheet struct {
	SessionID   string
	Title       string
	ClientID    string
	Currency    string
	GeneratedAt time.Time
	Lines       []Line
	Total       decimal.Decimal
}

// FromCart snapshots cart in line order.
func FromCart(sess domain.Session, cart domain.Cart, currency string, at time.Time) Sheet {
	sheet := Sheet{
		SessionID:   sess.ID,
		Title:       sess.Title,
		ClientID:    sess.ClientID,
		Currency:    currency,
		GeneratedAt: at,
		Lines:       make([]Line, 0, len(cart.Lines)),
		Total:       cart.Total,
	}
	for _, l := range cart.Lines {
		sheet.Lines = append(sheet.Lines, Line{
			BatchCode:   l.BatchCode,
			ProductName: l.ProductName,
			Status:      l.ItemStatus,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.Subtotal,
		})
	}
	return sheet
}

// Renderer formats money for one locale.
type Renderer struct {
	group string
	point string
}

func NewRenderer(tag language.Tag) *Renderer {
	group, point := separators(message.NewPrinter(tag))
	return &Renderer{group: group, point: point}
}

// separators reads the locale's grouping and decimal symbols off a sample
// the printer formats. 12345.5 is exact in binary and long enough to group
// in every locale with a minimum grouping of two. Locales with their own
// digits fall back to the ASCII symbols.
func separators(p *message.Printer) (group, point string) {
	var seps []string
	for _, r := range p.Sprintf("%.1f", 12345.5) {
		if r < '0' || r > '9' {
			seps = append(seps, string(r))
		}
	}
	switch len(seps) {
	case 1:
		return "", seps[0]
	case 2:
		return seps[0], seps[1]
	}
	return ",", "."
}

const (
	productWidth = 24
	lineFormat   = "%-10s %-24s %-14s %8s %12s %12s\n"
)

func (r *Renderer) Render(w io.Writer, s Sheet) error {
	title := s.Title
	if title == "" {
		title = s.SessionID
	}
	if _, err := fmt.Fprintf(w, "SALES SHEET\nSession:   %s\nClient:    %s\nGenerated: %s\n\n",
		title, s.ClientID, s.GeneratedAt.UTC().Format("2006-01-02 15:04 MST")); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, lineFormat, "CODE", "PRODUCT", "STATUS", "QTY", "UNIT PRICE", "SUBTOTAL"); err != nil {
		return err
	}
	for _, l := range s.Lines {
		if _, err := fmt.Fprintf(w, lineFormat,
			l.BatchCode,
			truncate(l.ProductName, productWidth),
			statusLabel(l.Status),
			l.Quantity.String(),
			r.money(l.UnitPrice),
			r.money(l.Subtotal),
		); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\n%72s %12s\n", "TOTAL "+s.Currency, r.money(s.Total))
	return err
}

// money renders d rounded to cents from its exact digits.
func (r *Renderer) money(d decimal.Decimal) string {
	text := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(text, "-") {
		sign, text = "-", text[1:]
	}
	whole, cents, _ := strings.Cut(text, ".")
	return sign + groupThousands(whole, r.group) + r.point + cents
}

func groupThousands(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func statusLabel(s domain.ItemStatus) string {
	if s == domain.ItemStatusNone {
		return "-"
	}
	return string(s)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "~"
}
