package worker

import (
	"context"
	"sync"
	"time"

	"event_ticketing/internal/domain/checkin/model"
	"event_ticketing/pkg/metrics"

	"go.uber.org/zap"
)

// AuditWriter 失败检票记录的落库方
type AuditWriter interface {
	Create(ctx context.Context, record *model.CheckIn) error
}

type AuditTask struct {
	Record *model.CheckIn
	Retry  int // 重试次数
}

// WorkerPool 异步写入失败检票审计记录，失败后延迟重试
type WorkerPool struct {
	TaskQueue  chan AuditTask
	RetryQueue chan AuditTask // 重试队列
	Writer     AuditWriter
	WorkerNum  int
	MaxRetry   int // 最大重试次数
	RetryDelay time.Duration

	log     *zap.Logger
	metrics *metrics.MetricsCollector

	mu      sync.RWMutex
	stopped bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

func NewWorkerPool(writer AuditWriter, workerNum, bufferSize, maxRetry int, log *zap.Logger, m *metrics.MetricsCollector) *WorkerPool {
	if workerNum <= 0 {
		workerNum = 1
	}
	if bufferSize <= 1 {
		bufferSize = 2
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WorkerPool{
		TaskQueue:  make(chan AuditTask, bufferSize),
		RetryQueue: make(chan AuditTask, bufferSize/2),
		Writer:     writer,
		WorkerNum:  workerNum,
		MaxRetry:   maxRetry,
		RetryDelay: time.Second,
		log:        log,
		metrics:    m,
		quit:       make(chan struct{}),
	}
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.WorkerNum; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	// 启动重试处理协程
	p.wg.Add(1)
	go p.retryWorker()
	p.log.Info("audit worker pool started", zap.Int("workers", p.WorkerNum))
}

// Stop 停止接收新任务，处理完队列中剩余的任务后返回
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.quit)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.TaskQueue:
			p.handle(id, task)
		case <-p.quit:
			p.drain(id)
			return
		}
	}
}

// drain 停机时同步写完主队列，不再重试
func (p *WorkerPool) drain(id int) {
	for {
		select {
		case task := <-p.TaskQueue:
			if err := p.processTask(task); err != nil {
				p.logFailedTask(task, err)
			}
		default:
			return
		}
	}
}

func (p *WorkerPool) handle(id int, task AuditTask) {
	err := p.processTask(task)
	if err == nil {
		return
	}
	p.log.Warn("failed to write check-in audit record",
		zap.Int("worker", id),
		zap.String("ticket_id", task.Record.TicketID),
		zap.Int("attempt", task.Retry+1),
		zap.Error(err),
	)

	// 如果未达到最大重试次数，加入重试队列
	if task.Retry >= p.MaxRetry {
		p.logFailedTask(task, err)
		return
	}
	task.Retry++
	select {
	case p.RetryQueue <- task:
	default:
		p.logFailedTask(task, err)
	}
}

func (p *WorkerPool) retryWorker() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.RetryQueue:
			// 延迟重试，避免立即重试
			select {
			case <-time.After(time.Duration(task.Retry) * p.RetryDelay):
			case <-p.quit:
				p.logFailedTask(task, nil)
				continue
			}
			select {
			case p.TaskQueue <- task:
			default:
				p.logFailedTask(task, nil)
			}
		case <-p.quit:
			for {
				select {
				case task := <-p.RetryQueue:
					p.logFailedTask(task, nil)
				default:
					return
				}
			}
		}
	}
}

func (p *WorkerPool) processTask(task AuditTask) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// 审计记录每次写入都是新行
	record := *task.Record
	record.ID = ""
	return p.Writer.Create(ctx, &record)
}

func (p *WorkerPool) logFailedTask(task AuditTask, err error) {
	p.metrics.RecordAuditDropped()
	p.log.Error("check-in audit record dropped",
		zap.String("ticket_id", task.Record.TicketID),
		zap.String("event_name", task.Record.EventName),
		zap.String("failure_reason", task.Record.FailureReason),
		zap.Int("retry", task.Retry),
		zap.Error(err),
	)
}

// Enqueue 非阻塞入队，队列满或已停止时返回 false
func (p *WorkerPool) Enqueue(record *model.CheckIn) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}

	task := AuditTask{Record: record}
	select {
	case p.TaskQueue <- task:
		return true
	default:
		p.logFailedTask(task, nil)
		return false
	}
}
