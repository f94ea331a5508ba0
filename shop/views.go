package shop

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shopbot/commerce"
	"shopbot/core/logger"
)

const menuButtonsPerRow = 2

// renderMenu sends the catalog grid. A non-empty note is shown above the
// prompt; the machine uses it for add-to-cart confirmations and inline
// upstream errors.
func (m *Machine) renderMenu(ctx context.Context, msgr Messenger, chatID int64, note string) error {
	products, err := m.api.ListProducts(ctx, 0)
	if err != nil {
		return err
	}

	var rows [][]Button
	var row []Button
	for _, p := range products {
		row = append(row, Button{Text: p.Name, Data: p.ID})
		if len(row) == menuButtonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []Button{{Text: "🛒 Cart", Data: payloadCart}})

	text := "Please choose:"
	if note != "" {
		text = note + "\n\n" + text
	}
	return msgr.SendText(ctx, chatID, text, rows)
}

// renderProduct sends the detail view for a live product: photo when the
// main image resolves, quantity options, and navigation buttons. A photo or
// file lookup failure degrades to a plain text detail rather than failing
// the transition.
func (m *Machine) renderProduct(ctx context.Context, msgr Messenger, chatID int64, product *commerce.Product) error {
	price := "Not yet orderable"
	if product.HasPrice() {
		price = product.FormattedPrice
	}
	caption := fmt.Sprintf("%s\n%s\n\n%s", product.Name, price, product.Description)

	var qtyRow []Button
	if product.HasPrice() {
		for _, label := range quantityOptions {
			quantity, err := parseQuantityLabel(label)
			if err != nil {
				return err
			}
			qtyRow = append(qtyRow, Button{Text: label, Data: encodeAddSelection(product.ID, quantity)})
		}
	}
	rows := [][]Button{}
	if len(qtyRow) > 0 {
		rows = append(rows, qtyRow)
	}
	rows = append(rows,
		[]Button{{Text: "🛒 Cart", Data: payloadCart}},
		[]Button{{Text: "⬅ Menu", Data: payloadMenu}},
	)

	if product.MainImageID != "" {
		file, err := m.api.GetFile(ctx, product.MainImageID)
		if err == nil && file.Link != "" {
			if sendErr := msgr.SendPhoto(ctx, chatID, file.Link, caption, rows); sendErr == nil {
				return nil
			}
		}
		if err != nil {
			logger.Warn(ctx, "shop", "product.image.fail",
				slog.String("product_id", product.ID),
				slog.String("file_id", product.MainImageID),
				slog.String("err", err.Error()),
			)
		}
	}
	return msgr.SendText(ctx, chatID, caption, rows)
}

// renderCart sends the cart view: one line per item, the tax-inclusive
// total, per-item remove buttons, and a menu button.
func (m *Machine) renderCart(ctx context.Context, msgr Messenger, chatID int64) error {
	ref := chatKey(chatID)
	header, err := m.api.GetCart(ctx, ref)
	if err != nil {
		return err
	}
	items, err := m.api.GetCartItems(ctx, ref)
	if err != nil {
		return err
	}

	var rows [][]Button
	var b strings.Builder
	if len(items) == 0 {
		b.WriteString("Your cart is empty.")
	} else {
		for _, item := range items {
			fmt.Fprintf(&b, "%s\n%d × %s = %s\n\n",
				item.Name, item.Quantity, item.FormattedUnitPrice, item.FormattedLinePrice)
			rows = append(rows, []Button{{Text: "✖ " + item.Name, Data: item.ID}})
		}
		fmt.Fprintf(&b, "Total: %s", header.FormattedPrice)
	}
	rows = append(rows, []Button{{Text: "⬅ Menu", Data: payloadMenu}})

	return msgr.SendText(ctx, chatID, b.String(), rows)
}
