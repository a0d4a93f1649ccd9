package main

import (
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ftl/rtlscan/core/rtlsdr"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the attached RTL-SDR dongles",
	Run:   runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Index", "Name", "Manufacturer", "Product", "Serial"})
	for _, device := range rtlsdr.List() {
		table.Append([]string{
			strconv.Itoa(device.Index),
			device.Name,
			device.Manufacturer,
			device.Product,
			device.Serial,
		})
	}
	table.Render()
}
