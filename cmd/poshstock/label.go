package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/poshstock/poshstock/labelfit"
)

func (c *cli) labelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Render barcode labels",
	}
	cmd.AddCommand(c.labelRenderCmd())
	return cmd
}

func (c *cli) labelRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <code>",
		Short: "Render a code as a PNG sized to a label",
		Long: `Render a barcode (or QR code with --kind qr) as large as fits the label.

Sizes accept mm or in suffixes; a bare number is millimeters. --size picks
a sheet preset (avery5160, avery5167, 2x1, 1.5x1) instead.`,
		Args: cobra.ExactArgs(1),
		RunE: c.runLabelRender,
	}

	cmd.Flags().String("width", "", "label width (default from labels.width)")
	cmd.Flags().String("height", "", "label height (default from labels.height)")
	cmd.Flags().String("size", "", "sheet preset name")
	cmd.Flags().Int("dpi", 0, "print resolution (default from labels.dpi)")
	cmd.Flags().String("kind", "", "symbology: ean8, upca, ean13, code128, qr (default: by code)")
	cmd.Flags().Bool("no-text", false, "omit the human-readable text")
	cmd.Flags().StringP("output", "o", "label.png", "output file")

	return cmd
}

func (c *cli) runLabelRender(cmd *cobra.Command, args []string) error {
	width, _ := cmd.Flags().GetString("width")
	height, _ := cmd.Flags().GetString("height")
	size, _ := cmd.Flags().GetString("size")
	dpi, _ := cmd.Flags().GetInt("dpi")
	kind, _ := cmd.Flags().GetString("kind")
	noText, _ := cmd.Flags().GetBool("no-text")
	output, _ := cmd.Flags().GetString("output")

	if width == "" {
		width = c.cfg.Labels.Width
	}
	if height == "" {
		height = c.cfg.Labels.Height
	}
	if size != "" {
		preset, ok := labelfit.LookupPreset(size)
		if !ok {
			return fmt.Errorf("unknown label size %q", size)
		}
		width, height = preset.Width, preset.Height
	}
	if dpi == 0 {
		dpi = c.cfg.Labels.DPI
	}

	w, err := labelfit.ParseLength(width)
	if err != nil {
		return err
	}
	h, err := labelfit.ParseLength(height)
	if err != nil {
		return err
	}

	res, err := labelfit.NewFitter().Fit(labelfit.Request{
		Code:      args[0],
		WidthMM:   w,
		HeightMM:  h,
		DPI:       dpi,
		WriteText: !noText,
		Symbology: labelfit.ParseSymbology(kind),
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(output, res.PNG, 0644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	if !res.Fitted {
		c.log.Warn("code does not fit the label; rendered at the fallback size",
			"target", fmt.Sprintf("%dx%d", res.TargetWidth, res.TargetHeight),
			"rendered", fmt.Sprintf("%dx%d", res.Width, res.Height))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %dx%d px (label %dx%d px, module %.3fmm)\n",
		output, res.Symbology, res.Width, res.Height, res.TargetWidth, res.TargetHeight, res.ModuleWidthMM)
	return nil
}
