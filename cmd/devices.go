package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/uvccap/internal/capture"
	"github.com/smazurov/uvccap/internal/devices"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List video capture devices",
		Long:  `Lists V4L2 capture nodes with their stable IDs. Any listed ID can be passed to --device.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			list, err := devices.List()
			if err != nil {
				Exit(capture.NewError(capture.DeviceOpenFailed, "list devices", err))
				return
			}
			Exit(printDevices(cmd.OutOrStdout(), list, asJSON))
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the device list as JSON")

	return cmd
}

func printDevices(w io.Writer, list []devices.Info, asJSON bool) error {
	if asJSON {
		if list == nil {
			list = []devices.Info{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No capture devices found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tNAME\tID\tCAPABILITIES")
	for _, d := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Path, d.Name, d.ID, strings.Join(d.Flags, ","))
	}
	return tw.Flush()
}
