package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nixxel-company-limited/embosser-controller/document"
	"github.com/nixxel-company-limited/embosser-controller/gateway"
	"github.com/nixxel-company-limited/embosser-controller/notify"
	"github.com/nixxel-company-limited/embosser-controller/preview"
)

var previewFlags struct {
	text string
	file string
	page int
	out  string
	png  bool
	dpi  float64
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render one transcribed page to a PDF or PNG file",
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := contentFrom(previewFlags.text, previewFlags.file)
		if err != nil {
			return err
		}

		gw := gateway.New(gateway.Conf{Host: cfg.Gateway.Host, Timeout: cfg.Gateway.Timeout},
			notify.Func(func(n notify.Notification) {
				logger.Error().Str("title", n.Title).Msg(n.Message)
			}), logger)
		store := document.NewStore(gw, document.FitzInspector{}, nil, logger)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.Timeout+30*time.Second)
		defer cancel()

		doc, err := store.Submit(ctx, content)
		if err != nil {
			return err
		}
		index := doc.Clamp(previewFlags.page - 1)
		page, err := doc.Page(index)
		if err != nil {
			return err
		}

		out := previewFlags.out
		if out == "" {
			ext := "pdf"
			if previewFlags.png {
				ext = "png"
			}
			out = fmt.Sprintf("braille-page-%d.%s", index+1, ext)
		}
		if err := preview.SaveFile(ctx, gw, page, out, previewFlags.png, previewFlags.dpi); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s page %d of %d -> %s\n",
			color.GreenString("wrote"), index+1, doc.PageCount(), out)
		return nil
	},
}

func init() {
	previewCmd.Flags().StringVarP(&previewFlags.text, "text", "t", "", "text to transcribe")
	previewCmd.Flags().StringVarP(&previewFlags.file, "file", "f", "", "PDF file to transcribe")
	previewCmd.Flags().IntVarP(&previewFlags.page, "page", "p", 1, "page to render (1-based)")
	previewCmd.Flags().StringVarP(&previewFlags.out, "out", "o", "", "output path")
	previewCmd.Flags().BoolVar(&previewFlags.png, "png", false, "rasterize to PNG")
	previewCmd.Flags().Float64Var(&previewFlags.dpi, "dpi", preview.DefaultDPI, "PNG resolution")
}
