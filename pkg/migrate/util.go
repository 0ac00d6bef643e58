package migrate

import (
	"github.com/sirupsen/logrus"
)

func (m *Executor) Log() *logrus.Entry {
	log := m.cslb.Log().WithField("context", "migrate")
	return log
}
