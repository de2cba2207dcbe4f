package daemon

import (
	"context"
	"errors"

	"framebroker/internal/broker"
	"framebroker/internal/history"
)

// recorderSet hands each finished job to every configured sink. One failing
// sink does not stop the others.
type recorderSet []broker.Recorder

func (s recorderSet) RecordJob(ctx context.Context, rec history.Record) error {
	var errs []error
	for _, r := range s {
		if err := r.RecordJob(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
