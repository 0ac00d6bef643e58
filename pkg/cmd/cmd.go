package cmd

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/padthaitofuhot/pve-cslb/pkg/config"
	"github.com/padthaitofuhot/pve-cslb/pkg/cslb"
	"github.com/padthaitofuhot/pve-cslb/pkg/proxmox"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func Run(version string) {
	logger := makeLog()
	logger.Infof("cslb %s starting", version)

	defineFlags(pflag.CommandLine)
	pflag.Parse()

	conf, err := config.Load(viper.GetViper(), pflag.CommandLine)
	if err != nil {
		logger.Fatalf("Configuration error: %s", err)
	}
	applyLogOptions(conf)

	o := cslb.New(version, logger, conf)

	// handle sigterm correctly
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-c
		logger := o.Log().WithField("signal", s.String())
		logger.Debug("received signal")
		o.Stop()
		os.Exit(1)
	}()

	o.Proxmox, err = proxmox.New(o)
	if err != nil {
		logger.Fatalf("Cannot connect to the Proxmox API: %s", err)
	}

	os.Exit(o.Run())
}

func defineFlags(flags *pflag.FlagSet) {
	flags.StringP("config-file", "c", config.DefaultConfigFile, "YAML configuration file")
	flags.BoolP("verbose", "v", false, "Increase verbosity")
	flags.BoolP("quiet", "q", false, "Only output errors")
	flags.Bool("no-color", false, "Disable ANSI color in output")
	flags.Bool("dry-run", false, "Perform read-only analysis; no write actions")

	flags.String("proxmox-scheme", "https", "Proxmox API connection method (https, ssh, local)")
	flags.String("proxmox-node", "localhost", "Proxmox node")
	flags.Int("proxmox-port", 8006, "Proxmox port")
	flags.String("proxmox-user", "root@pam", "Proxmox user")
	flags.String("proxmox-pass", "", "Proxmox password")
	flags.Bool("proxmox-no-verify-ssl", false, "Do not verify TLS certificate of Proxmox HTTPS API")
	flags.String("proxmox-ssh-key-file", "", "Proxmox SSH key file")

	flags.IntP("max-migrations", "m", 5, "Max simultaneous migrations to start")
	flags.Float64("tolerance", 0.2, "Max workload disparity tolerance")
	flags.Float64("percent-cpu", 0.4, "Percent priority of CPU rule (percent-cpu and percent-mem must equal 1.0)")
	flags.Float64("percent-mem", 0.6, "Percent priority of MEM rule (percent-cpu and percent-mem must equal 1.0)")

	flags.StringArray("exclude-node", nil, "Exclude a node (can be specified multiple times)")
	flags.StringArray("exclude-vmid", nil, "Exclude a VMID (can be specified multiple times)")
	flags.StringArray("exclude-type", nil, "Exclude a workload type ('lxc' or 'qemu'; can be specified multiple times)")
	flags.StringArray("include-node", nil, "Include a previously excluded node (can be specified multiple times)")
	flags.StringArray("include-vmid", nil, "Include a previously excluded VMID (can be specified multiple times)")
	flags.StringArray("include-type", nil, "Include a previously excluded workload type (can be specified multiple times)")
}

func makeLog() *log.Entry {
	logtype := strings.ToLower(os.Getenv("LOG_TYPE"))
	if logtype == "" {
		logtype = "text"
	}
	if logtype == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else if logtype == "text" {
		log.SetFormatter(&log.TextFormatter{
			ForceColors: true,
		})
	} else {
		log.WithField("logtype", logtype).Fatal("Given logtype was not valid, check LOG_TYPE configuration")
		os.Exit(1)
	}

	loglevel := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if len(loglevel) == 0 {
		log.SetLevel(log.InfoLevel)
	} else if loglevel == "debug" {
		log.SetLevel(log.DebugLevel)
	} else if loglevel == "info" {
		log.SetLevel(log.InfoLevel)
	} else if loglevel == "warn" {
		log.SetLevel(log.WarnLevel)
	} else if loglevel == "error" {
		log.SetLevel(log.ErrorLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	return log.WithField("context", "cslb")
}

func applyLogOptions(conf *config.Config) {
	if conf.Verbose {
		log.SetLevel(log.DebugLevel)
	}
	if conf.Quiet {
		log.SetLevel(log.ErrorLevel)
	}
	if conf.NoColor {
		log.SetFormatter(&log.TextFormatter{
			DisableColors: true,
		})
	}
}
