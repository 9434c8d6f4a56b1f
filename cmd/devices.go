package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/camforge/uvchost/pkg/usbmon"
)

// CreateDevicesCmd creates the devices command, listing USB devices
// from sysfs.
func CreateDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List connected USB devices",
		RunE: func(_ *cobra.Command, _ []string) error {
			devices, err := usbmon.ListDevices()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DEVICE\tPRODUCT\tSERIAL\tPATH")
			for _, d := range devices {
				fmt.Fprintf(w, "%04x:%04x\t%s\t%s\t%s\n",
					d.VendorID, d.ProductID, d.Product, d.Serial, d.SysPath)
			}
			return w.Flush()
		},
	}
}
