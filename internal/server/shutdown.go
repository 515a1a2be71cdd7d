package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

type shutdownTask struct {
	name string
	fn   func(context.Context) error
}

// ShutdownManager cancels the root context on SIGINT or SIGTERM and then runs
// the registered tasks in reverse registration order within Timeout.
type ShutdownManager struct {
	Timeout time.Duration

	cancel context.CancelFunc
	mu     sync.Mutex
	tasks  []shutdownTask
	once   sync.Once
	done   chan struct{}
}

func NewShutdownManager(ctx context.Context, timeout time.Duration) (context.Context, *ShutdownManager) {
	ctx, cancel := context.WithCancel(ctx)
	return ctx, &ShutdownManager{
		Timeout: timeout,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Register adds a task. Resources should be registered in the order they are
// opened so that they close in reverse.
func (sm *ShutdownManager) Register(name string, task func(context.Context) error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.tasks = append(sm.tasks, shutdownTask{name: name, fn: task})
}

// Listen shuts down on the first SIGINT or SIGTERM.
func (sm *ShutdownManager) Listen() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.WithField("signal", sig.String()).Info("shutdown signal received")
		sm.Shutdown()
	}()
}

// Shutdown runs the tasks once. Later calls wait for the first to finish.
func (sm *ShutdownManager) Shutdown() {
	sm.once.Do(func() {
		defer close(sm.done)
		sm.cancel()

		ctx, cancel := context.WithTimeout(context.Background(), sm.Timeout)
		defer cancel()

		sm.mu.Lock()
		tasks := append([]shutdownTask(nil), sm.tasks...)
		sm.mu.Unlock()

		for i := len(tasks) - 1; i >= 0; i-- {
			if err := tasks[i].fn(ctx); err != nil {
				log.WithError(err).WithField("task", tasks[i].name).Error("shutdown task failed")
				continue
			}
			log.WithField("task", tasks[i].name).Debug("shutdown task complete")
		}
		log.Info("graceful shutdown complete")
	})
	<-sm.done
}

// Done is closed once shutdown has finished.
func (sm *ShutdownManager) Done() <-chan struct{} {
	return sm.done
}
