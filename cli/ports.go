package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nixxel-company-limited/embosser-controller/device"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports and attached USB-serial bridges",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, bridges, err := device.Discover()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		likely := color.New(color.FgGreen, color.Bold).SprintFunc()
		dim := color.New(color.Faint).SprintFunc()

		if len(ports) == 0 {
			fmt.Fprintln(out, dim("no serial ports found"))
		}
		for _, p := range ports {
			name := p.Name
			if p.Likely() {
				name = likely(name)
			}
			detail := p.Product
			if p.IsUSB {
				detail = fmt.Sprintf("%s [%s:%s] %s", p.Product, p.VID, p.PID, p.Serial)
			}
			fmt.Fprintf(out, "%s  %s\n", name, dim(detail))
		}

		if len(bridges) > 0 {
			fmt.Fprintln(out)
			fmt.Fprintln(out, color.CyanString("USB bridges:"))
			for _, b := range bridges {
				fmt.Fprintf(out, "  %s\n", b)
			}
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "default: %s @ %d baud\n", cfg.Device.Port, cfg.Device.BaudRate)
		return nil
	},
}
