package study

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
	"github.com/azraeltruthsay/gaia/internal/resilience"
)

// HTTPTrainer implements Trainer against an external fine-tuning
// service (spec.md §1: training internals are an external
// collaborator). It posts one batch of samples per step and reads
// back the running loss, wrapped in the same circuit breaker + retry
// shape fabric.HTTPCoreClient uses for its cross-service calls.
type HTTPTrainer struct {
	BaseURL string
	HTTP    *http.Client
	Breaker *resilience.CircuitBreaker
	Retry   *resilience.RetryConfig
}

// NewHTTPTrainer builds an HTTPTrainer against baseURL.
func NewHTTPTrainer(baseURL string) *HTTPTrainer {
	return &HTTPTrainer{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
		Breaker: resilience.New(resilience.DefaultConfig("study->trainer")),
		Retry:   resilience.DefaultRetryConfig(),
	}
}

type trainStepRequest struct {
	Step    int              `json:"step"`
	Samples []TrainingSample `json:"samples"`
}

type trainStepResponse struct {
	Loss float64 `json:"loss"`
}

// TrainStep satisfies Trainer by delegating one optimizer step to the
// external trainer.
func (t *HTTPTrainer) TrainStep(ctx context.Context, samples []TrainingSample, step int) (float64, error) {
	var loss float64
	err := t.Breaker.Execute(ctx, func() error {
		return resilience.Retry(ctx, t.Retry, func() error {
			body, err := json.Marshal(trainStepRequest{Step: step, Samples: samples})
			if err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/train_step", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := t.HTTP.Do(req)
			if err != nil {
				return gaiaerr.New("study.HTTPTrainer.TrainStep", "study", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				return gaiaerr.New("study.HTTPTrainer.TrainStep", "study", gaiaerr.ErrTimeout).WithID(resp.Status)
			}
			var out trainStepResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return gaiaerr.New("study.HTTPTrainer.TrainStep", "study", err)
			}
			loss = out.Loss
			return nil
		})
	})
	return loss, err
}
