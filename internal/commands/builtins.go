package commands

import (
	"context"
	"encoding/json"

	"github.com/tjfontaine/aj7-relay/internal/relay"
)

// Greeting is what the greet command returns.
const Greeting = "Hello AJ7!"

// Options selects how the relay commands are served.
type Options struct {
	// OffloadChat backs chat_api with the offloaded variant.
	OffloadChat bool
}

type requestArgs struct {
	StreamID *string `json:"streamId"`
	Method   *string `json:"method"`
	URL      *string `json:"url"`
	Headers  *string `json:"headers"`
	Body     *string `json:"body"`
}

func (a requestArgs) spec() relay.RequestSpec {
	return relay.RequestSpec{
		Method:  *a.Method,
		URL:     *a.URL,
		Headers: a.Headers,
		Body:    a.Body,
	}
}

// RegisterBuiltins registers greet, call_api, chat_api and stream_api.
// Relay commands run detached from the caller's cancellation: once issued, a
// call runs until it completes or fails.
func RegisterBuiltins(r *Registry, svc *relay.Service, em relay.Emitter, opts Options) error {
	chat := svc.ChatAPI
	if opts.OffloadChat {
		chat = svc.ChatAPIOffloaded
	}

	builtins := map[string]Handler{
		"greet": func(ctx context.Context, _ json.RawMessage) (any, error) {
			return Greeting, nil
		},

		"call_api": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args requestArgs
			if err := decodeArgs("call_api", raw, &args); err != nil {
				return nil, err
			}
			if args.Method == nil {
				return nil, missing("call_api", "method")
			}
			if args.URL == nil {
				return nil, missing("call_api", "url")
			}
			return svc.CallAPI(context.WithoutCancel(ctx), args.spec())
		},

		"chat_api": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args requestArgs
			if err := decodeArgs("chat_api", raw, &args); err != nil {
				return nil, err
			}
			if args.URL == nil {
				return nil, missing("chat_api", "url")
			}
			if args.Body == nil {
				return nil, missing("chat_api", "body")
			}
			return chat(context.WithoutCancel(ctx), *args.URL, *args.Body)
		},

		"stream_api": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args requestArgs
			if err := decodeArgs("stream_api", raw, &args); err != nil {
				return nil, err
			}
			if args.StreamID == nil {
				return nil, missing("stream_api", "streamId")
			}
			if args.Method == nil {
				return nil, missing("stream_api", "method")
			}
			if args.URL == nil {
				return nil, missing("stream_api", "url")
			}
			if err := svc.StreamAPI(context.WithoutCancel(ctx), em, *args.StreamID, args.spec()); err != nil {
				return nil, err
			}
			return nil, nil
		},
	}

	for name, h := range builtins {
		if err := r.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}
