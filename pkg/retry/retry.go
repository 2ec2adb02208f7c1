// Package retry runs a bounded sequence of provider attempts, moving to the
// next endpoint whenever a call fails or its answer is rejected.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/pario-ai/askgate/pkg/apierr"
	"github.com/pario-ai/askgate/pkg/models"
	"github.com/pario-ai/askgate/pkg/provider"
	"github.com/pario-ai/askgate/pkg/router"
)

// Sender performs one upstream call.
type Sender interface {
	Kind() provider.Kind
	Send(ctx context.Context, q models.Query, ep provider.Endpoint) (provider.RawResponse, error)
}

// Validator accepts or rejects a parsed candidate.
type Validator interface {
	Validate(c models.Candidate) (models.Answer, error)
}

// Recorder receives one sample per attempt.
type Recorder interface {
	Record(success bool, latency time.Duration, reason string)
}

// Scheduler owns the attempt loop for one gateway.
type Scheduler struct {
	sender    Sender
	validator Validator
	router    *router.Router
	delays    []time.Duration
	metrics   Recorder
	log       logrus.FieldLogger
	now       func() time.Time
}

// New creates a Scheduler. delays is the inter-attempt wait table; nil
// uses DefaultDelays and an empty non-nil slice selects exponential backoff.
func New(sender Sender, validator Validator, r *router.Router, delays []time.Duration, metrics Recorder, log logrus.FieldLogger) *Scheduler {
	if delays == nil {
		delays = DefaultDelays
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		sender:    sender,
		validator: validator,
		router:    r,
		delays:    delays,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// Attempt tries each planned endpoint in order until one yields an answer
// that passes validation. Every attempt is returned as a record. Exhausting
// the plan returns AllAttemptsFailed wrapping the last failure; a done ctx
// returns Cancelled. A failure that is neither a transport nor a validation
// error ends the plan early.
func (s *Scheduler) Attempt(ctx context.Context, q models.Query) (models.Answer, []models.AttemptRecord, error) {
	plan, err := s.router.Plan()
	if err != nil {
		return models.Answer{}, nil, apierr.AllAttemptsFailed(apierr.Transport("router", err))
	}

	log := s.log.WithField("route", string(s.sender.Kind()))
	bo := newBackOff(s.delays)
	records := make([]models.AttemptRecord, 0, len(plan))
	var lastErr error

	for i, ep := range plan {
		if i > 0 {
			if err := wait(ctx, bo); err != nil {
				return models.Answer{}, records, err
			}
		}
		if err := ctx.Err(); err != nil {
			return models.Answer{}, records, apierr.Cancelled(err)
		}

		start := s.now()
		answer, err := s.try(ctx, q, ep)
		latency := s.now().Sub(start)

		if apierr.KindOf(err) == apierr.KindCancelled {
			return models.Answer{}, records, err
		}

		rec := models.AttemptRecord{Index: i, Endpoint: ep.Name, Latency: latency}
		if err == nil {
			rec.Outcome = models.OutcomeSuccess
			records = append(records, rec)
			s.record(true, latency, "")
			log.WithFields(logrus.Fields{"attempt": i + 1, "endpoint": ep.Name}).Debug("attempt succeeded")
			return answer, records, nil
		}

		rec.Outcome = outcomeOf(err)
		rec.Reason = apierr.ReasonOf(err)
		records = append(records, rec)
		s.record(false, latency, rec.Reason)
		lastErr = err

		log.WithFields(logrus.Fields{
			"attempt":  i + 1,
			"of":       len(plan),
			"endpoint": ep.Name,
			"reason":   rec.Reason,
		}).Warnf("attempt failed: %v", err)

		// Another endpoint cannot fix a local failure such as a broken schema.
		if !apierr.Recoverable(err) {
			break
		}
	}

	return models.Answer{}, records, apierr.AllAttemptsFailed(lastErr)
}

func (s *Scheduler) try(ctx context.Context, q models.Query, ep provider.Endpoint) (models.Answer, error) {
	raw, err := s.sender.Send(ctx, q, ep)
	if err != nil {
		return models.Answer{}, err
	}
	candidate, err := provider.Parse(s.sender.Kind(), raw.Body)
	if err != nil {
		return models.Answer{}, err
	}
	return s.validator.Validate(candidate)
}

func (s *Scheduler) record(success bool, latency time.Duration, reason string) {
	if s.metrics != nil {
		s.metrics.Record(success, latency, reason)
	}
}

func outcomeOf(err error) models.AttemptOutcome {
	if apierr.KindOf(err) == apierr.KindValidation {
		return models.OutcomeValidationError
	}
	return models.OutcomeTransportError
}

func wait(ctx context.Context, bo backoff.BackOff) error {
	d := bo.NextBackOff()
	if d == backoff.Stop {
		return apierr.AllAttemptsFailed(nil)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return apierr.Cancelled(ctx.Err())
	case <-timer.C:
		return nil
	}
}
