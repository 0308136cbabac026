package netscan

import (
	"neorecon/internal/core/model"
)

// aggregator 单协程消费探测结果
// 唯一写 stats 的地方，回调在 stats 锁外、回调锁内执行
type aggregator struct {
	s        *NetworkScanner
	total    int
	interval int

	reported     bool
	lastReported int

	collected []*model.ScanResult
}

func newAggregator(s *NetworkScanner, total, interval int) *aggregator {
	return &aggregator{s: s, total: total, interval: interval}
}

func (a *aggregator) consume(results <-chan *model.ScanResult) {
	for res := range results {
		a.add(res)
	}
}

func (a *aggregator) add(res *model.ScanResult) {
	s := a.s

	s.mu.Lock()
	applyResult(&s.stats, res)
	scanned := s.stats.Scanned
	s.mu.Unlock()

	keep := res.Status == model.StatusOpen || res.Status == model.StatusError
	if keep {
		a.collected = append(a.collected, res)
	}

	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	if keep && s.cb.OnResult != nil {
		s.cb.OnResult(res)
	}
	if a.interval > 0 && scanned%a.interval == 0 {
		a.progress(scanned)
	}
}

// finish 结束时补发一次进度 (与上次相同则跳过)
// 空目标也会回调一次 (0, 0)
func (a *aggregator) finish() {
	scanned := a.s.Stats().Scanned
	if a.reported && a.lastReported == scanned {
		return
	}
	a.s.cbMu.Lock()
	defer a.s.cbMu.Unlock()
	a.progress(scanned)
}

// progress 调用方需持有 cbMu
func (a *aggregator) progress(scanned int) {
	a.reported = true
	a.lastReported = scanned
	if a.s.cb.OnProgress != nil {
		a.s.cb.OnProgress(scanned, a.total)
	}
}

// applyResult 将单个结果计入统计
func applyResult(st *model.ScanStats, res *model.ScanResult) {
	st.Scanned++
	switch res.Status {
	case model.StatusOpen:
		st.OpenPorts++
		switch res.Service {
		case model.ServiceSSH:
			st.SSHFound++
		case model.ServiceRDP:
			st.RDPFound++
		}
	case model.StatusError:
		st.Errors++
	}
	if res.CredentialStatus == model.CredentialValid {
		st.CredentialsValid++
	}
}
