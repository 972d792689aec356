//go:generate go run go.uber.org/mock/mockgen -source=worker.go -destination=../../mocks/mock_worker.go -package=mocks

// Package workers contains the long-running background loops of the engine
// and the supervisor that keeps them alive for the process lifetime.
package workers

import (
	"context"
	"reflect"
)

// Worker is a bare run loop. It does not protect itself; the supervisor
// owns restarts and panic recovery.
type Worker interface {
	Run(ctx context.Context) error
}

// workerName resolves the concrete type name of a worker for logging,
// avoiding a manual naming method on the interface.
func workerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
