package cslb

import (
	"github.com/padthaitofuhot/pve-cslb/pkg/config"
	"github.com/sirupsen/logrus"
)

type CSLB interface {
	Version() string
	Log() *logrus.Entry
	Config() *config.Config
}
