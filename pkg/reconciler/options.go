package reconciler

import (
	"github.com/openagenda-tools/uniqloc/pkg/constants"
	"github.com/openagenda-tools/uniqloc/pkg/errors"
)

// options configures a Reconciler.
type options struct {
	pageSize int
	onDecide func(Event, Decision)
}

func defaultOptions() *options {
	return &options{
		pageSize: constants.DefaultPageSize,
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// newOptions returns reconciler options with default values.
func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithPageSize sets how many events are requested per page.
func WithPageSize(size int) Option {
	return func(o *options) error {
		if size <= 0 || size > constants.MaxPageSize {
			return &errors.ValidationError{
				Field:   "page_size",
				Value:   size,
				Message: "must be between 1 and 300",
			}
		}
		o.pageSize = size
		return nil
	}
}

// WithDecisionHook registers a function called after each decision is made,
// before it is applied.
func WithDecisionHook(fn func(Event, Decision)) Option {
	return func(o *options) error {
		if fn == nil {
			return &errors.ValidationError{
				Field:   "decision_hook",
				Message: "cannot be nil",
			}
		}
		o.onDecide = fn
		return nil
	}
}
