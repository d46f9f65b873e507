// Package signup gates Cognito pre sign-up requests on email validation and
// an optional rego policy.
package signup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/cruxstack/email-mx-validator-go/internal/config"
	"github.com/cruxstack/email-mx-validator-go/internal/opa"
	"github.com/cruxstack/email-mx-validator-go/internal/validator"
)

// ErrDenied is matched by every DeniedError.
var ErrDenied = errors.New("sign-up denied")

// DeniedError is returned to Cognito, which rejects the sign-up and surfaces
// the message to the client.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	if e.Reason == "" {
		return ErrDenied.Error()
	}
	return ErrDenied.Error() + ": " + e.Reason
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrDenied
}

type Validator interface {
	Validate(ctx context.Context, email string, opts ...validator.Option) (*validator.Result, error)
}

type Handler struct {
	Validator Validator

	// Policy is optional; without it invalid addresses are denied and valid
	// ones allowed unchanged.
	Policy *opa.PreparedPolicy

	Logger *slog.Logger
}

// New builds a handler from configuration, compiling the policy once.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Handler, error) {
	v, err := cfg.NewValidator(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	h := &Handler{Validator: v, Logger: logger}

	if cfg.SignupPolicyPath != "" {
		pp, err := opa.LoadPolicy(ctx, cfg.SignupPolicyPath, PolicyQuery)
		if err != nil {
			v.Close()
			return nil, err
		}
		h.Policy = pp
	}

	return h, nil
}

func (h *Handler) Handle(ctx context.Context, event events.CognitoEventUserPoolsPreSignup) (events.CognitoEventUserPoolsPreSignup, error) {
	email := event.Request.UserAttributes["email"]

	res, err := h.Validator.Validate(ctx, email)
	if err != nil {
		return event, fmt.Errorf("failed to validate email: %w", err)
	}

	out, err := h.decide(ctx, event, res)
	if err != nil {
		return event, fmt.Errorf("failed to decide sign-up: %w", err)
	}

	switch out.Action {
	case ActionAllow:
	case ActionDeny:
		h.logger().InfoContext(ctx, "sign-up denied",
			"user_pool_id", event.UserPoolID,
			"trigger", event.TriggerSource,
			"error_code", res.ErrorCode,
			"reason", out.Reason,
		)
		return event, &DeniedError{Reason: out.Reason}
	default:
		return event, fmt.Errorf("unknown policy action: %q", out.Action)
	}

	event.Response.AutoConfirmUser = out.AutoConfirmUser
	event.Response.AutoVerifyEmail = out.AutoVerifyEmail

	h.logger().DebugContext(ctx, "sign-up allowed",
		"user_pool_id", event.UserPoolID,
		"trigger", event.TriggerSource,
		"auto_confirm", out.AutoConfirmUser,
		"auto_verify_email", out.AutoVerifyEmail,
	)
	return event, nil
}

func (h *Handler) decide(ctx context.Context, event events.CognitoEventUserPoolsPreSignup, res *validator.Result) (*PolicyOutput, error) {
	if h.Policy == nil {
		if !res.Valid {
			return &PolicyOutput{Action: ActionDeny, Reason: res.Reason}, nil
		}
		return &PolicyOutput{Action: ActionAllow}, nil
	}

	input := PolicyInput{
		Trigger:        event.TriggerSource,
		UserAttributes: event.Request.UserAttributes,
		ClientMetadata: event.Request.ClientMetadata,
		Validation:     res,
	}

	return opa.Evaluate[PolicyOutput](ctx, h.Policy, input)
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}
