package diagnostic

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gridwatch/evaudit/pkg/logset"
)

// Default runner settings.
const (
	DefaultWorkerCap       = 8
	DefaultProgressTick    = 500 * time.Millisecond
	progressChannelBacklog = 64
)

// Update is one progress message from a worker to the renderer.
type Update struct {
	Serial string
	Stage  string // "queued", "analyzing", "done", "failed"
}

// RenderFunc receives a snapshot of per-device stages on every tick and
// once more after the last device finishes.
type RenderFunc func(status map[string]string)

// Runner fans device analyses out over a bounded worker pool. Workers
// report progress over a channel to a single rendering goroutine; they
// never share memory with the renderer or with each other.
type Runner struct {
	// Workers caps the pool size; the effective size is
	// min(GOMAXPROCS, Workers, device count). Zero means the default cap.
	Workers int

	// ProgressTick is the render poll interval. Zero means the default.
	ProgressTick time.Duration

	// Render receives status snapshots; nil disables rendering.
	Render RenderFunc

	analyzer *Analyzer
}

// NewRunner creates a Runner around the given analyzer.
func NewRunner(a *Analyzer) *Runner {
	return &Runner{
		Workers:      DefaultWorkerCap,
		ProgressTick: DefaultProgressTick,
		analyzer:     a,
	}
}

// Run analyzes every device and returns reports in input order. A single
// device is analyzed sequentially with no pool. Per-device failures are
// captured on that device's report; the batch always completes.
func (r *Runner) Run(devices []logset.DeviceLogs) []*Report {
	if len(devices) == 0 {
		return nil
	}
	if len(devices) == 1 {
		return []*Report{r.analyzeSafe(devices[0], nil)}
	}

	updates := make(chan Update, progressChannelBacklog)
	renderDone := make(chan struct{})
	go r.render(updates, renderDone)

	for _, dev := range devices {
		send(updates, Update{Serial: dev.Serial, Stage: "queued"})
	}

	reports := make([]*Report, len(devices))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < r.poolSize(len(devices)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				reports[i] = r.analyzeSafe(devices[i], updates)
			}
		}()
	}

	for i := range devices {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	close(updates)
	<-renderDone

	return reports
}

func (r *Runner) poolSize(deviceCount int) int {
	n := r.Workers
	if n <= 0 {
		n = DefaultWorkerCap
	}
	if procs := runtime.GOMAXPROCS(0); procs < n {
		n = procs
	}
	if deviceCount < n {
		n = deviceCount
	}
	if n < 1 {
		n = 1
	}
	return n
}

// analyzeSafe isolates per-device panics so one broken device cannot
// abort its siblings.
func (r *Runner) analyzeSafe(dev logset.DeviceLogs, updates chan<- Update) (rep *Report) {
	defer func() {
		if p := recover(); p != nil {
			rep = &Report{
				Serial: dev.Serial,
				Folder: dev.Folder,
				Err:    fmt.Sprintf("analysis failed: %v", p),
			}
			send(updates, Update{Serial: dev.Serial, Stage: "failed"})
		}
	}()

	send(updates, Update{Serial: dev.Serial, Stage: "analyzing"})
	rep = r.analyzer.AnalyzeDevice(dev)
	send(updates, Update{Serial: dev.Serial, Stage: "done"})
	return rep
}

// send never blocks a worker; a full progress channel drops the update,
// which only costs display freshness.
func send(updates chan<- Update, u Update) {
	if updates == nil {
		return
	}
	select {
	case updates <- u:
	default:
	}
}

// render owns the status map. It drains updates and invokes Render on a
// fixed tick, then once more with the final state when updates closes.
func (r *Runner) render(updates <-chan Update, done chan<- struct{}) {
	defer close(done)

	tick := r.ProgressTick
	if tick <= 0 {
		tick = DefaultProgressTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	status := make(map[string]string)
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				r.callRender(status)
				return
			}
			status[u.Serial] = u.Stage
		case <-ticker.C:
			r.callRender(status)
		}
	}
}

func (r *Runner) callRender(status map[string]string) {
	if r.Render == nil {
		return
	}
	snapshot := make(map[string]string, len(status))
	for k, v := range status {
		snapshot[k] = v
	}
	r.Render(snapshot)
}

// FormatStatus renders a status snapshot as one stable line per device,
// sorted by serial.
func FormatStatus(status map[string]string) []string {
	serials := make([]string, 0, len(status))
	for serial := range status {
		serials = append(serials, serial)
	}
	sort.Strings(serials)

	lines := make([]string, len(serials))
	for i, serial := range serials {
		lines[i] = fmt.Sprintf("%s: %s", serial, status[serial])
	}
	return lines
}
