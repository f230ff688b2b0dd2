package agent

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"charm.land/fantasy"

	"github.com/dotcommander/scour/internal/config"
	"github.com/dotcommander/scour/internal/errs"
)

// LoopError means the model kept requesting tools past the configured depth
// and the turn was cut off without a final answer.
type LoopError struct {
	Depth int
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("agent: no final answer after %d rounds of tool calls", e.Depth)
}

// ErrorAction describes how the caller should respond to a failed turn.
type ErrorAction struct {
	Retry  bool
	Prompt string
	Err    errs.Error
}

// ActionForError decides whether a provider error should be retried, and if
// so with which prompt.
func (s *Service) ActionForError(err error, prompt string) ErrorAction {
	var loopErr *LoopError
	if errors.As(err, &loopErr) {
		return ErrorAction{Err: errs.Error{
			Err:    err,
			Reason: fmt.Sprintf("The model did not produce an answer within %d tool calls. Try a narrower query.", loopErr.Depth),
		}}
	}
	var providerErr *fantasy.ProviderError
	if errors.As(err, &providerErr) {
		return s.actionForProviderError(providerErr, s.model, prompt)
	}
	return ErrorAction{
		Err: errs.Error{Err: err, Reason: fmt.Sprintf("There was a problem with the %s API request.", s.model.API)},
	}
}

func (s *Service) actionForProviderError(err *fantasy.ProviderError, mod config.Model, prompt string) ErrorAction {
	cfg := s.cfg
	switch err.StatusCode {
	case http.StatusNotFound:
		return ErrorAction{
			Err: errs.Error{Err: err, Reason: fmt.Sprintf("Missing model '%s' for API '%s'.", cfg.Model, cfg.API)},
		}

	case http.StatusBadRequest:
		if isContextLengthExceeded(err) {
			return ErrorAction{
				Retry:  true,
				Prompt: cutPrompt(err.Error(), prompt),
				Err:    errs.Error{Err: err, Reason: "Maximum prompt size exceeded."},
			}
		}
		reason := fantasy.ErrorTitleForStatusCode(err.StatusCode)
		if reason == "" {
			reason = fmt.Sprintf("%s API request error.", mod.API)
		}
		return ErrorAction{Err: errs.Error{Err: err, Reason: reason}}
	}

	if err.IsRetryable() {
		reason := fantasy.ErrorTitleForStatusCode(err.StatusCode)
		if reason == "" {
			reason = "Retryable API error."
		}
		return ErrorAction{
			Retry:  true,
			Prompt: prompt,
			Err:    errs.Error{Err: err, Reason: reason},
		}
	}

	reason := fantasy.ErrorTitleForStatusCode(err.StatusCode)
	if reason == "" {
		reason = fmt.Sprintf("%s API request error.", mod.API)
	}
	return ErrorAction{Err: errs.Error{Err: err, Reason: reason}}
}

func isContextLengthExceeded(err *fantasy.ProviderError) bool {
	if strings.Contains(strings.ToLower(err.Message), "context_length_exceeded") {
		return true
	}
	if strings.Contains(strings.ToLower(string(err.ResponseBody)), "context_length_exceeded") {
		return true
	}
	return false
}

var tokenErrRe = regexp.MustCompile(`This model's maximum context length is (\d+) tokens. However, your messages resulted in (\d+) tokens`)

func cutPrompt(msg, prompt string) string {
	found := tokenErrRe.FindStringSubmatch(msg)
	if len(found) != 3 { //nolint:mnd
		return prompt
	}

	maxt, _ := strconv.Atoi(found[1])
	current, _ := strconv.Atoi(found[2])

	if maxt > current {
		return prompt
	}

	// 1 token =~ 4 chars
	// cut 10 extra chars 'just in case'
	reduceBy := 10 + (current-maxt)*4 //nolint:mnd
	if len(prompt) > reduceBy {
		return prompt[:len(prompt)-reduceBy]
	}

	return prompt
}
