// Copyright (c) Microsoft. All rights reserved.

// Package agentserver hosts a single invoke function behind a small HTTP
// protocol. A caller POSTs a JSON request to /invoke and gets back either one
// JSON result or a Server-Sent-Events stream, whichever the function produced
// and the caller asked for.
//
// # Quick Start
//
//	srv, err := agentserver.New(func(req *agentserver.Request) (*agentserver.Result, error) {
//	    return agentserver.NewCompletedResult("hi back"), nil
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(srv.Run(ctx))
//
// # Invoke functions
//
// Four calling conventions are accepted and classified once by [NewInvoker]:
//
//   - [Func]: synchronous, returns a [Result]. Runs on the worker pool.
//   - [ContextFunc]: receives the request context and returns an [Output],
//     which holds either a result or an [EventStream].
//   - [GeneratorFunc]: returns an iter.Seq2 of events. Each step is pulled on
//     the worker pool.
//   - [ProducerFunc]: sends events on a channel until it returns.
//
// # Responses
//
// [Plan] decides the response format. A result requested without streaming
// is written as JSON. A result requested with streaming becomes a single
// invocation.completed frame. A stream is always written as SSE, one frame
// per event, followed by "data: [DONE]".
//
// The first event of a stream is read before any header is written, so a
// failure at stream start is an ordinary 500. Later failures are reported
// in-band as an "error" event and the [DONE] sentinel is omitted.
package agentserver
