package gnbmac

import (
	"sync"

	"github.com/sarchlab/nrmac/sap"
)

type lcConfigReq struct {
	rnti        uint16
	cfg         sap.LogicalChannelConfig
	reconfigure bool
}

type lcReleaseReq struct {
	rnti uint16
	lcid uint8
}

type deviceReleaseReq struct {
	rnti uint16
}

type srReq struct {
	rnti uint16
}

type rachReq struct {
	preambleID    uint8
	estimatedSize uint32
}

// inbox collects requests from any goroutine until the next slot.
type inbox struct {
	lock    sync.Mutex
	configs []any
	reports []any
}

func (b *inbox) pushConfig(req any) {
	b.lock.Lock()
	b.configs = append(b.configs, req)
	b.lock.Unlock()
}

func (b *inbox) pushReport(req any) {
	b.lock.Lock()
	b.reports = append(b.reports, req)
	b.lock.Unlock()
}

func (b *inbox) drain() (configs, reports []any) {
	b.lock.Lock()
	defer b.lock.Unlock()

	configs, reports = b.configs, b.reports
	b.configs, b.reports = nil, nil

	return configs, reports
}

func (b *inbox) len() int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return len(b.configs) + len(b.reports)
}
