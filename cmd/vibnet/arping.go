package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
)

var arpingWait time.Duration

var arpingCmd = &cobra.Command{
	Use:   "arping <destination>",
	Short: "Resolve an IPv4 address with ARP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dst, err := common.ParseIPv4(args[0])
		if err != nil {
			return err
		}

		s, dev, err := openStack()
		if err != nil {
			return err
		}
		defer dev.Close()

		if err := s.SendARPRequest(dst); err != nil {
			return err
		}

		deadline := time.Now().Add(arpingWait)
		for time.Now().Before(deadline) {
			if mac, ok := s.ARP.Lookup(dst); ok {
				fmt.Printf("%s is at %s\n", dst, mac)
				return nil
			}
			time.Sleep(50 * time.Millisecond)
		}
		return fmt.Errorf("no ARP reply from %s within %s", dst, arpingWait)
	},
}

func init() {
	arpingCmd.Flags().DurationVarP(&arpingWait, "wait", "w", 3*time.Second, "how long to wait for a reply")
	rootCmd.AddCommand(arpingCmd)
}
