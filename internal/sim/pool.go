package sim

import "sync"

// intervalPool recycles the per-block interval buffers. Ensemble workers
// share it, so buffers survive across simulators.
type intervalPool struct {
	pool sync.Pool
}

func newIntervalPool() *intervalPool {
	return &intervalPool{
		pool: sync.Pool{
			New: func() any {
				buf := make([]interval, 0, 64)
				return &buf
			},
		},
	}
}

func (p *intervalPool) Get() *[]interval {
	buf := p.pool.Get().(*[]interval)
	*buf = (*buf)[:0]
	return buf
}

func (p *intervalPool) Put(buf *[]interval) {
	if cap(*buf) > 1<<16 {
		return
	}
	p.pool.Put(buf)
}

var intervals = newIntervalPool()
