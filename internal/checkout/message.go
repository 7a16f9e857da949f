package checkout

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/motodetail-shop/internal/money"
	"github.com/MikeMC777/motodetail-shop/internal/order"
)

// Message renders the order summary sent to the store over WhatsApp.
func Message(store string, c order.Snapshot, items []order.Item, total decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Novo pedido - %s*\n\n", store)
	fmt.Fprintf(&b, "Cliente: %s\n", c.Name)
	fmt.Fprintf(&b, "Telefone: %s\n", c.Phone)
	if c.Email != "" {
		fmt.Fprintf(&b, "E-mail: %s\n", c.Email)
	}
	if c.Address != "" {
		fmt.Fprintf(&b, "Endereço: %s\n", c.Address)
	}
	b.WriteString("\nItens:\n")
	for _, it := range items {
		fmt.Fprintf(&b, "%dx %s - %s\n", it.Quantity, it.Name, money.BRL(it.Subtotal()))
	}
	fmt.Fprintf(&b, "\n*Total: %s*", money.BRL(total))
	return b.String()
}

// WhatsAppURL builds the wa.me deep link. Non-digits are stripped from number.
func WhatsAppURL(number, text string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, number)
	return "https://wa.me/" + digits + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}
