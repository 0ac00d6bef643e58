package cslb

import (
	"github.com/padthaitofuhot/pve-cslb/pkg/config"
	"github.com/padthaitofuhot/pve-cslb/pkg/proxmox"
	"github.com/sirupsen/logrus"
)

type CSLB struct {
	Ver  string
	conf *config.Config
	log  *logrus.Entry

	Proxmox *proxmox.Client

	stopCh chan struct{}
}
