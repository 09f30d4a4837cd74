package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
	"github.com/Acteus/vib-OS-sub000/pkg/config"
	"github.com/Acteus/vib-OS-sub000/pkg/ethernet"
	"github.com/Acteus/vib-OS-sub000/pkg/netstack"
)

var (
	cfgFile   string
	ifaceName string
	localAddr string

	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "vibnet",
	Short: "Userspace TCP/IP stack over a raw packet socket",
	Long: `vibnet drives a minimal TCP/IP stack directly on an Ethernet
interface through an AF_PACKET socket, bypassing the host's own stack.
Running it requires CAP_NET_RAW.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&ifaceName, "interface", "i", "eth0", "network interface to bind")
	rootCmd.PersistentFlags().StringVar(&localAddr, "ip", "", "local IPv4 address (overrides config)")
}

// openStack loads the configuration, opens the raw device, and returns
// a running stack with the receive loop started. The caller closes the
// device when done.
func openStack() (*netstack.Stack, *ethernet.Device, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ConfigureLogger(log); err != nil {
		return nil, nil, err
	}

	dev, err := ethernet.OpenDevice(ifaceName)
	if err != nil {
		return nil, nil, err
	}

	ifc := &netstack.Interface{
		Name:     ifaceName,
		MAC:      dev.MACAddress(),
		Up:       true,
		Transmit: dev.Transmit,
	}

	// Interface addressing comes from the config entry matching the
	// bound interface; the --ip flag overrides.
	for _, ic := range cfg.Interfaces {
		if ic.Name != ifaceName {
			continue
		}
		if ifc.IP, err = common.ParseIPv4(ic.IP); err != nil {
			dev.Close()
			return nil, nil, err
		}
		if ic.Netmask != "" {
			if ifc.Netmask, err = common.ParseIPv4(ic.Netmask); err != nil {
				dev.Close()
				return nil, nil, err
			}
		}
		if ic.Gateway != "" {
			if ifc.Gateway, err = common.ParseIPv4(ic.Gateway); err != nil {
				dev.Close()
				return nil, nil, err
			}
		}
	}
	if localAddr != "" {
		if ifc.IP, err = common.ParseIPv4(localAddr); err != nil {
			dev.Close()
			return nil, nil, err
		}
	}
	if (ifc.IP == common.IPv4Address{}) {
		dev.Close()
		return nil, nil, fmt.Errorf("no local IP for %s: set --ip or add it to the config", ifaceName)
	}

	s := netstack.New(log)
	if err := s.RegisterInterface(ifc); err != nil {
		dev.Close()
		return nil, nil, err
	}

	go func() {
		for {
			frame, err := dev.ReadFrame()
			if err != nil {
				log.WithError(err).Debug("receive loop stopped")
				return
			}
			s.HandleFrame(ifc, frame)
		}
	}()

	log.WithFields(logrus.Fields{
		"iface": ifaceName,
		"mac":   ifc.MAC,
		"ip":    ifc.IP,
	}).Info("stack up")
	return s, dev, nil
}
