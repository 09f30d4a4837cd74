package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
)

var pingCount int

var pingCmd = &cobra.Command{
	Use:   "ping <destination>",
	Short: "Send ICMP echo requests",
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

		// Replies come back through the receive loop and are logged by
		// the ICMP handler.
		id := uint16(os.Getpid())
		for seq := 1; seq <= pingCount; seq++ {
			if err := s.SendEchoRequest(dst, id, uint16(seq)); err != nil {
				return err
			}
			log.WithField("seq", seq).Info("echo request sent")
			if seq < pingCount {
				time.Sleep(time.Second)
			}
		}
		time.Sleep(time.Second)
		return nil
	},
}

func init() {
	pingCmd.Flags().IntVarP(&pingCount, "count", "n", 4, "number of requests to send")
	rootCmd.AddCommand(pingCmd)
}
