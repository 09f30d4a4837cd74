package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
)

var udpSourcePort uint16

var udpsendCmd = &cobra.Command{
	Use:   "udpsend <destination> <port> <message>",
	Short: "Send a one-shot UDP datagram",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		dst, err := common.ParseIPv4(args[0])
		if err != nil {
			return err
		}
		port, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return fmt.Errorf("bad port %q: %w", args[1], err)
		}

		s, dev, err := openStack()
		if err != nil {
			return err
		}
		defer dev.Close()

		n, err := s.SendUDP(dst, udpSourcePort, uint16(port), []byte(args[2]))
		if err != nil {
			return err
		}
		fmt.Printf("sent %d bytes to %s:%d\n", n, dst, port)
		return nil
	},
}

func init() {
	udpsendCmd.Flags().Uint16Var(&udpSourcePort, "sport", 50000, "source port")
	rootCmd.AddCommand(udpsendCmd)
}
