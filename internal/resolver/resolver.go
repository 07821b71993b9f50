// Package resolver adapts direct Lambda resolver calls from the GraphQL
// gateway to manager operations.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/realsocial/real/errs"
	"github.com/realsocial/real/internal/logging"
	"github.com/realsocial/real/manager"
)

// ErrUnknownField is returned for fields no handler is registered for.
var ErrUnknownField = errors.New("resolver: unknown field")

// Request is the direct resolver payload.
type Request struct {
	Arguments json.RawMessage `json:"arguments"`
	Identity  struct {
		Sub string `json:"sub"`
	} `json:"identity"`
	Info struct {
		FieldName      string `json:"fieldName"`
		ParentTypeName string `json:"parentTypeName"`
	} `json:"info"`
}

// Field names the resolved field as Type.field.
func (r Request) Field() string {
	return r.Info.ParentTypeName + "." + r.Info.FieldName
}

// Response carries either data or a client error.
type Response struct {
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is a client error as the gateway shows it to the caller.
type ErrorBody struct {
	Message   string         `json:"message"`
	ErrorType string         `json:"errorType"`
	Data      map[string]any `json:"data,omitempty"`
	Info      map[string]any `json:"info,omitempty"`
}

// Func resolves one field for callerID.
type Func func(ctx context.Context, callerID string, args json.RawMessage) (any, error)

// Resolver routes requests by field.
type Resolver struct {
	app    *manager.App
	logger *zap.Logger
	fields map[string]Func
}

// New returns a resolver with every field registered.
func New(app *manager.App, logger *zap.Logger) *Resolver {
	r := &Resolver{app: app, logger: logging.OrNop(logger), fields: make(map[string]Func)}
	r.register()
	return r
}

// Handle resolves a request. Client errors are returned in the response;
// anything else fails the invocation.
func (r *Resolver) Handle(ctx context.Context, req Request) (Response, error) {
	fn, ok := r.fields[req.Field()]
	if !ok {
		return Response{}, fmt.Errorf("%w: %s", ErrUnknownField, req.Field())
	}
	if req.Identity.Sub == "" {
		return clientError(errs.NewForbidden("no caller identity")), nil
	}

	data, err := fn(ctx, req.Identity.Sub, req.Arguments)
	if err == nil {
		return Response{Data: data}, nil
	}
	if errs.IsClient(err) {
		r.logger.Info("client error",
			zap.String("field", req.Field()),
			zap.String("userId", req.Identity.Sub),
			zap.Error(err),
		)
		return clientError(err), nil
	}
	r.logger.Error("resolver failed",
		zap.String("field", req.Field()),
		zap.String("userId", req.Identity.Sub),
		zap.Error(err),
	)
	return Response{}, err
}

func clientError(err error) Response {
	var e *errs.Error
	if !errors.As(err, &e) {
		return Response{Error: &ErrorBody{Message: err.Error(), ErrorType: "ClientError"}}
	}
	return Response{Error: &ErrorBody{
		Message:   e.Message,
		ErrorType: "ClientError:" + string(e.Kind),
		Data:      e.Data,
		Info:      e.Info,
	}}
}

var validate = validator.New()

// handle decodes and validates arguments of type A before calling fn.
func handle[A any](fn func(ctx context.Context, callerID string, args A) (any, error)) Func {
	return func(ctx context.Context, callerID string, raw json.RawMessage) (any, error) {
		var args A
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, errs.NewValidation("invalid arguments: %v", err)
			}
		}
		if err := validate.Struct(args); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				return nil, errs.NewValidation("invalid argument %s (%s)", verrs[0].Field(), verrs[0].Tag())
			}
			return nil, err
		}
		return fn(ctx, callerID, args)
	}
}

// done adapts an operation with no result.
func done(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return true, nil
}
