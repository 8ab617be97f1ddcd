package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/storefront/internal/catalog"
)

// ProductsResult is the JSON payload of the products command.
type ProductsResult struct {
	Backend  string            `json:"backend"`
	Products []catalog.Product `json:"products"`
}

// NewProductsCommand creates the products command.
func NewProductsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List the catalog in display order",
		Long: `Read the catalog once and print it in display order: in-stock items
first, each group in the backend's delivery order.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)

			b, err := openBackend(ctx, cfg)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open backend", err)
			}
			defer b.Close()

			products, err := b.catalog.List(ctx)
			if err != nil {
				_ = rootOpts.formatter(cmd).Error(ErrCodeBackend, "failed to list products", err.Error())
				return WrapExitError(ExitFailure, "failed to list products", err)
			}
			ordered := catalog.Partition(products)

			result := ProductsResult{Backend: cfg.Backend.Kind, Products: ordered}
			return rootOpts.formatter(cmd).Success(result, func(w io.Writer) error {
				return renderProductList(w, ordered)
			})
		},
	}
}

func renderProductList(w io.Writer, products []catalog.Product) error {
	if len(products) == 0 {
		_, err := fmt.Fprintln(w, "No products.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK\tIMAGE")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, FormatPrice(p.Price), StockLabel(p.InStock), ImageURL(p))
	}
	return tw.Flush()
}
