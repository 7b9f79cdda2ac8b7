package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

const (
	defaultMaxRetries     = 3
	defaultRetryDelay     = 1 * time.Second
	defaultRequestTimeout = 60 * time.Second
	backoffFactor         = 2.0
)

// OpenAIClient implements Completer for the OpenAI and Azure OpenAI chat completion APIs
type OpenAIClient struct {
	Credentials Credentials

	// BaseURL overrides the OpenAI endpoint (proxies, tests). Azure uses Credentials.AzureEndpoint.
	BaseURL string

	// MaxRetries is the number of extra attempts after a transient failure
	MaxRetries int

	// RetryDelay is the initial backoff delay; it doubles after every attempt
	RetryDelay time.Duration

	// RequestTimeout bounds a single HTTP attempt
	RequestTimeout time.Duration

	// StrictFinish turns a finish reason other than "stop" into an error
	StrictFinish bool

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewOpenAIClient creates a client with the default retry and timeout policy
func NewOpenAIClient(creds Credentials) *OpenAIClient {
	return &OpenAIClient{
		Credentials:    creds,
		MaxRetries:     defaultMaxRetries,
		RetryDelay:     defaultRetryDelay,
		RequestTimeout: defaultRequestTimeout,
	}
}

// Complete sends the request, retrying transient failures with jittered exponential backoff
func (o *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := o.Credentials.Check(req.Backend); err != nil {
		return "", err
	}

	var lastErr error
	delay := o.RetryDelay

	for attempt := 0; attempt <= o.MaxRetries; attempt++ {
		if attempt > 0 {
			var wait time.Duration
			if delay > 0 {
				// random value between 0.5x and 1.5x of delay
				wait = delay/2 + time.Duration(rand.Int63n(int64(delay)))
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", classify(req.Backend, ctx.Err())
			}
			delay = time.Duration(float64(delay) * backoffFactor)
		}

		result, err := o.makeRequest(ctx, req)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return "", err
		}

		if ctx.Err() != nil {
			return "", classify(req.Backend, ctx.Err())
		}

		if attempt < o.MaxRetries {
			o.log().Warn("completion attempt failed, retrying",
				"backend", req.Backend, "model", req.Model, "attempt", attempt+1, "error", err)
		}
	}

	return "", &Error{
		Kind:    KindTransient,
		Backend: req.Backend,
		Err:     fmt.Errorf("failed after %d retries: %w", o.MaxRetries, lastErr),
	}
}

func (o *OpenAIClient) makeRequest(ctx context.Context, req CompletionRequest) (string, error) {
	params, extra, err := buildParams(req)
	if err != nil {
		return "", err
	}

	client := openai.NewClient(o.clientOptions(req.Backend)...)

	completion, err := client.Chat.Completions.New(ctx, params, extra...)
	if err != nil {
		return "", classify(req.Backend, err)
	}

	if len(completion.Choices) == 0 {
		return "", &Error{Kind: KindTransient, Backend: req.Backend, Err: errors.New("no completion choices returned")}
	}

	choice := completion.Choices[0]
	if choice.FinishReason != "" && choice.FinishReason != "stop" {
		if o.StrictFinish {
			return "", &Error{
				Kind:    KindInvalidRequest,
				Backend: req.Backend,
				Err:     fmt.Errorf("%w: finish reason %q", ErrIncompleteResponse, choice.FinishReason),
			}
		}
		o.log().Warn("unexpected finish reason", "backend", req.Backend, "model", req.Model, "finish_reason", choice.FinishReason)
	}

	return choice.Message.Content, nil
}

// clientOptions builds SDK options for one backend. SDK retries are disabled because
// Complete owns the retry policy.
func (o *OpenAIClient) clientOptions(backend Backend) []option.RequestOption {
	opts := []option.RequestOption{option.WithMaxRetries(0)}

	switch backend {
	case BackendAzure:
		opts = append(opts,
			azure.WithEndpoint(o.Credentials.AzureEndpoint, o.Credentials.azureAPIVersion()),
			azure.WithAPIKey(o.Credentials.AzureAPIKey),
		)
	default:
		opts = append(opts, option.WithAPIKey(o.Credentials.OpenAIAPIKey))
		if o.BaseURL != "" {
			base := o.BaseURL
			if !strings.HasSuffix(base, "/") {
				base += "/"
			}
			opts = append(opts, option.WithBaseURL(base))
		}
	}

	if o.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(o.RequestTimeout))
	}
	if o.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(o.HTTPClient))
	}
	return opts
}

func (o *OpenAIClient) log() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// classify maps an SDK or transport failure onto the error taxonomy
func classify(backend Backend, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		e := &Error{Backend: backend, StatusCode: apiErr.StatusCode, Err: err}
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			e.Kind = KindAuthentication
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode == http.StatusConflict,
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= 500:
			e.Kind = KindTransient
		default:
			e.Kind = KindInvalidRequest
		}
		return e
	}

	// Caller cancellation is not a service failure
	if errors.Is(err, context.Canceled) {
		return err
	}

	return &Error{Kind: KindTransient, Backend: backend, Err: err}
}
