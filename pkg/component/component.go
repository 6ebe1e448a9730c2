// Package component runs long-lived parts of the process under one start
// and stop sequence.
package component

import "context"

type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
