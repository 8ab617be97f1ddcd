package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/roach88/storefront/internal/catalog"
	"github.com/roach88/storefront/internal/engine"
)

const (
	emptyStudentMessage = "No items are currently available. Please check back later!"
	emptyAdminMessage   = "No products found. Add one using the form above."
)

// FormatPrice renders a price with two decimals.
func FormatPrice(price float64) string {
	return fmt.Sprintf("$%.2f", price)
}

// StockLabel is the badge text for a product.
func StockLabel(inStock bool) string {
	if inStock {
		return "In Stock"
	}
	return "Out of Stock"
}

// ImageURL falls back to the placeholder when a product has no image.
func ImageURL(p catalog.Product) string {
	if p.ImageURL == "" {
		return catalog.PlaceholderImageURL
	}
	return p.ImageURL
}

// RenderView writes a plain-text rendering of v.
func RenderView(w io.Writer, v engine.ViewDescription) error {
	switch v.Mode {
	case engine.ModeAdminDashboard:
		fmt.Fprintln(w, "Admin Dashboard")
		if v.Principal != "" {
			fmt.Fprintf(w, "Signed in as %s\n", v.Principal)
		}
	default:
		fmt.Fprintln(w, "Campus Store")
	}
	fmt.Fprintln(w)

	if v.Status == engine.StatusUnavailable {
		_, err := fmt.Fprintln(w, engine.UnavailableMessage)
		return err
	}

	if len(v.Products) == 0 {
		msg := emptyStudentMessage
		if v.Mode == engine.ModeAdminDashboard {
			msg = emptyAdminMessage
		}
		_, err := fmt.Fprintln(w, msg)
		return err
	}

	if v.Mode == engine.ModeAdminDashboard {
		return renderProductTable(w, v.Products)
	}
	return renderProductCards(w, v.Products)
}

// renderProductCards is the student layout: one block per product.
func renderProductCards(w io.Writer, products []catalog.Product) error {
	for i, p := range products {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s  %s  [%s]\n", p.Name, FormatPrice(p.Price), StockLabel(p.InStock))
		fmt.Fprintf(w, "  %s\n", p.Description)
		if _, err := fmt.Fprintf(w, "  %s\n", ImageURL(p)); err != nil {
			return err
		}
	}
	return nil
}

// renderProductTable is the admin layout, with ids for use in commands.
func renderProductTable(w io.Writer, products []catalog.Product) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, FormatPrice(p.Price), StockLabel(p.InStock))
	}
	return tw.Flush()
}
