package events

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"supportrelay/internal/common"
	"supportrelay/internal/config"
	"supportrelay/internal/metrics"
)

// Manager fans events out to subscribed observers, either inline or
// through a fixed pool of workers reading a buffered channel.
type Manager struct {
	observers    map[string]common.Observer
	eventChannel chan common.Event
	workerPool   int
	ctx          context.Context
	cancel       context.CancelFunc
	mu           sync.RWMutex
	wg           sync.WaitGroup
	once         sync.Once
}

var _ common.Subject = (*Manager)(nil)

func NewManager(workerPoolSize, bufferSize int) *Manager {
	if workerPoolSize <= 0 {
		workerPoolSize = 1
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		observers:    make(map[string]common.Observer),
		eventChannel: make(chan common.Event, bufferSize),
		workerPool:   workerPoolSize,
		ctx:          ctx,
		cancel:       cancel,
	}

	for i := 0; i < workerPoolSize; i++ {
		m.wg.Add(1)
		go m.processEvents()
	}

	return m
}

// NewManagerFromConfig builds a Manager with the default log and metrics observers
func NewManagerFromConfig(cfg *config.Config) *Manager {
	m := NewManager(cfg.Events.Workers, cfg.Events.BufferSize)
	m.Subscribe(NewLogObserver())
	m.Subscribe(NewMetricsObserver())
	return m
}

func (m *Manager) Subscribe(observer common.Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers[observer.Name()] = observer
	log.Debugf("observer %s subscribed", observer.Name())
}

func (m *Manager) Unsubscribe(observer common.Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.observers, observer.Name())
	log.Debugf("observer %s unsubscribed", observer.Name())
}

func (m *Manager) Notify(event common.Event) {
	m.mu.RLock()
	observers := make([]common.Observer, 0, len(m.observers))
	for _, obs := range m.observers {
		observers = append(observers, obs)
	}
	m.mu.RUnlock()

	for _, observer := range observers {
		if err := observer.Update(event); err != nil {
			log.WithError(err).Warnf("observer %s update failed", observer.Name())
		}
	}
}

// NotifyAsync never blocks the caller; a full buffer drops the event.
func (m *Manager) NotifyAsync(event common.Event) {
	select {
	case <-m.ctx.Done():
		return
	default:
	}

	select {
	case m.eventChannel <- event:
	case <-m.ctx.Done():
	default:
		metrics.EventDropped()
		log.Warnf("event channel full, dropping event: %s", event.Type)
	}
}

func (m *Manager) processEvents() {
	defer m.wg.Done()

	for {
		select {
		case event := <-m.eventChannel:
			m.Notify(event)
		case <-m.ctx.Done():
			m.drain()
			return
		}
	}
}

// drain delivers whatever was queued before shutdown
func (m *Manager) drain() {
	for {
		select {
		case event := <-m.eventChannel:
			m.Notify(event)
		default:
			return
		}
	}
}

// Shutdown stops the workers after delivering queued events. Safe to call twice.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.cancel()
		m.wg.Wait()
		log.Info("event manager shutdown complete")
	})
}
