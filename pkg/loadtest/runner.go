package loadtest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Outcome 请求的业务结果分类，例如 "admitted"、"409"
type Outcome string

// RequestFunc 单个请求；err 表示网络或协议层失败
type RequestFunc func(ctx context.Context) (Outcome, error)

// Runner 以固定并发把每个请求执行一次
type Runner struct {
	name        string
	concurrency int
}

func NewRunner(name string, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{name: name, concurrency: concurrency}
}

// Run 所有请求执行完或 ctx 取消后返回
func (r *Runner) Run(ctx context.Context, requests []RequestFunc) *Result {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		times = make([]time.Duration, 0, len(requests))
		res   = &Result{Name: r.name, Concurrency: r.concurrency, Outcomes: make(map[Outcome]int)}
	)

	jobs := make(chan RequestFunc)
	start := time.Now()
	for i := 0; i < r.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				begin := time.Now()
				outcome, err := req(ctx)
				elapsed := time.Since(begin)

				mu.Lock()
				res.Total++
				times = append(times, elapsed)
				if err != nil {
					res.Errors++
				} else {
					res.Outcomes[outcome]++
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, req := range requests {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- req:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	res.Elapsed = time.Since(start)
	res.summarize(times)
	return res
}

// Result 压测结果
type Result struct {
	Name        string          `json:"name"`
	Concurrency int             `json:"concurrency"`
	Total       int             `json:"total"`
	Errors      int             `json:"errors"`
	Outcomes    map[Outcome]int `json:"outcomes"`
	Elapsed     time.Duration   `json:"elapsed"`
	QPS         float64         `json:"qps"`
	Average     time.Duration   `json:"average"`
	Min         time.Duration   `json:"min"`
	Max         time.Duration   `json:"max"`
	P50         time.Duration   `json:"p50"`
	P95         time.Duration   `json:"p95"`
	P99         time.Duration   `json:"p99"`
}

func (r *Result) summarize(times []time.Duration) {
	if len(times) == 0 {
		return
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	var total time.Duration
	for _, t := range times {
		total += t
	}
	r.Average = total / time.Duration(len(times))
	r.Min = times[0]
	r.Max = times[len(times)-1]
	r.P50 = percentile(times, 0.50)
	r.P95 = percentile(times, 0.95)
	r.P99 = percentile(times, 0.99)
	if r.Elapsed > 0 {
		r.QPS = float64(r.Total) / r.Elapsed.Seconds()
	}
}

// percentile times 已排序
func percentile(times []time.Duration, p float64) time.Duration {
	if len(times) == 0 {
		return 0
	}
	index := int(float64(len(times)) * p)
	if index >= len(times) {
		index = len(times) - 1
	}
	return times[index]
}

// Print 输出结果
func (r *Result) Print(w io.Writer) {
	fmt.Fprintf(w, "--------------------------------------------------\n")
	fmt.Fprintf(w, "%s\n", r.Name)
	fmt.Fprintf(w, "并发数: %d  总请求数: %d  网络错误: %d\n", r.Concurrency, r.Total, r.Errors)
	fmt.Fprintf(w, "耗时: %v  QPS: %.2f\n", r.Elapsed, r.QPS)
	fmt.Fprintf(w, "响应时间 avg=%v min=%v max=%v p50=%v p95=%v p99=%v\n", r.Average, r.Min, r.Max, r.P50, r.P95, r.P99)

	outcomes := make([]string, 0, len(r.Outcomes))
	for o := range r.Outcomes {
		outcomes = append(outcomes, string(o))
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(w, "  %-12s %d\n", o, r.Outcomes[Outcome(o)])
	}
	fmt.Fprintf(w, "--------------------------------------------------\n")
}
