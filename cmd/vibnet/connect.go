package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
	"github.com/Acteus/vib-OS-sub000/pkg/tcp"
)

var (
	connectSend    string
	connectTimeout time.Duration
)

var connectCmd = &cobra.Command{
	Use:   "connect <destination> <port>",
	Short: "Open a TCP connection, optionally exchange data, and close it",
	Args:  cobra.ExactArgs(2),
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

		id, err := s.Connect(dst, uint16(port))
		if err != nil {
			return err
		}

		if err := waitEstablished(s.TCP, id, connectTimeout); err != nil {
			s.TCP.Close(id)
			return err
		}
		fmt.Printf("connected to %s:%d\n", dst, port)

		if connectSend != "" {
			if _, err := s.TCP.Send(id, []byte(connectSend)); err != nil {
				s.TCP.Close(id)
				return err
			}
		}

		// Drain whatever the peer sends until the read deadline passes.
		buf := make([]byte, 4096)
		deadline := time.Now().Add(connectTimeout)
		for time.Now().Before(deadline) {
			n, err := s.TCP.Recv(id, buf)
			if err != nil {
				if errors.Is(err, tcp.ErrInvalidConnection) {
					// Peer closed and the slot was reclaimed.
					return nil
				}
				return err
			}
			if n > 0 {
				os.Stdout.Write(buf[:n])
				continue
			}
			time.Sleep(20 * time.Millisecond)
		}

		return s.TCP.Close(id)
	},
}

// waitEstablished polls until the connection leaves SYN_SENT.
func waitEstablished(tbl *tcp.Table, id int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, ok := tbl.Get(id)
		if !ok {
			return errors.New("connection refused")
		}
		if conn.State == tcp.StateEstablished {
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return errors.New("connection timed out")
}

func init() {
	connectCmd.Flags().StringVar(&connectSend, "send", "", "data to send once connected")
	connectCmd.Flags().DurationVar(&connectTimeout, "timeout", 5*time.Second, "handshake and read timeout")
	rootCmd.AddCommand(connectCmd)
}
