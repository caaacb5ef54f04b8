package cmd

import (
	"fmt"
	"io"
	"iter"
	"strings"
	"text/tabwriter"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/uvccap/internal/capture"
	"github.com/smazurov/uvccap/internal/devices"
	"github.com/smazurov/uvccap/pkg/linuxav/v4l2"
)

// deviceInfo is the read-only part of a session that info prints.
type deviceInfo interface {
	Path() string
	Capability() (v4l2.Capability, error)
	CropCapability() (*v4l2.CropCapability, error)
	Formats() iter.Seq2[v4l2.FormatDesc, error]
	FrameSizes(pixelFormat v4l2.FourCC) ([]v4l2.Resolution, error)
}

// CreateInfoCmd creates the info command.
func CreateInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print device capabilities and pixel formats",
		Long: `Opens the device and prints its capabilities, cropping capabilities, ` +
			`the pixel formats it enumerates with their frame sizes, and the format indexes accepted by --format-index.`,
		Args: cobra.NoArgs,
		Run: humacli.WithOptions(func(cmd *cobra.Command, _ []string, opts *Options) {
			Exit(runInfo(cmd.OutOrStdout(), opts, nil))
		}),
	}
}

func runInfo(w io.Writer, opts *Options, open capture.Opener) error {
	path, err := devices.Resolve(opts.Device)
	if err != nil {
		return capture.NewError(capture.DeviceOpenFailed, "resolve device", err)
	}

	sessionOpts := []capture.Option{}
	if open != nil {
		sessionOpts = append(sessionOpts, capture.WithOpener(open))
	}
	session, err := capture.Open(path, sessionOpts...)
	if err != nil {
		return err
	}
	defer session.Close()

	return printInfo(w, session)
}

func printInfo(w io.Writer, dev deviceInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	capability, err := dev.Capability()
	if err != nil {
		return err
	}
	fmt.Fprintf(tw, "Device:\t%s\n", dev.Path())
	fmt.Fprintf(tw, "  Driver:\t%s\n", capability.Driver)
	fmt.Fprintf(tw, "  Card:\t%s\n", capability.Card)
	fmt.Fprintf(tw, "  Bus:\t%s\n", capability.BusInfo)
	fmt.Fprintf(tw, "  Version:\t%s\n", capability.VersionString())
	fmt.Fprintf(tw, "  Capabilities:\t%s\n", strings.Join(capability.Flags(), ", "))

	crop, err := dev.CropCapability()
	if err != nil {
		return err
	}
	if crop == nil {
		fmt.Fprintf(tw, "Cropping:\tnot supported\n")
	} else {
		fmt.Fprintf(tw, "Cropping:\t\n")
		fmt.Fprintf(tw, "  Bounds:\t%s\n", formatRect(crop.Bounds))
		fmt.Fprintf(tw, "  Default:\t%s\n", formatRect(crop.DefRect))
		fmt.Fprintf(tw, "  Pixel aspect:\t%d/%d\n", crop.PixelAspect.Numerator, crop.PixelAspect.Denominator)
	}

	fmt.Fprintf(tw, "Formats:\t\n")
	for desc, err := range dev.Formats() {
		if err != nil {
			return err
		}
		sizes, err := dev.FrameSizes(desc.PixelFormat)
		if err != nil {
			return capture.NewError(capture.FormatEnumerationFailed, "enumerate frame sizes", err)
		}
		fmt.Fprintf(tw, "  [%d] %s\t%s%s\t%s\n", desc.Index, desc.PixelFormat, desc.Description, formatFlags(desc), formatSizes(sizes))
	}

	fmt.Fprintf(tw, "Format indexes:\t\n")
	for i, name := range capture.SupportedFormatNames {
		marker := ""
		if i == capture.DefaultFormatIndex {
			marker = " (default)"
		}
		fmt.Fprintf(tw, "  %d\t%s%s\n", i, name, marker)
	}

	return tw.Flush()
}

func formatRect(r v4l2.Rect) string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.Left, r.Top)
}

func formatFlags(desc v4l2.FormatDesc) string {
	var flags []string
	if desc.Compressed() {
		flags = append(flags, "compressed")
	}
	if desc.Emulated() {
		flags = append(flags, "emulated")
	}
	if len(flags) == 0 {
		return ""
	}
	return " (" + strings.Join(flags, ", ") + ")"
}

func formatSizes(sizes []v4l2.Resolution) string {
	if len(sizes) == 0 {
		return "-"
	}
	parts := make([]string, len(sizes))
	for i, r := range sizes {
		parts[i] = fmt.Sprintf("%dx%d", r.Width, r.Height)
	}
	return strings.Join(parts, " ")
}
