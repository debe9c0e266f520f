// Package live implements the Gemini Live session boundary: a
// WebSocket client for the BidiGenerateContent protocol, the wire
// types shared with it, and a Mock for testing consumers.
//
// A session is configured before it is connected; the setup frame
// (model, response modality, voice, system instruction, capability
// declarations) is the first frame on the wire and cannot be reissued
// on an established session.
//
// # Usage
//
//	client, err := live.NewClient(live.ClientConfig{APIKey: key})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client.SelectModel("models/gemini-2.0-flash-exp")
//	client.Configure(live.SessionConfig{
//	    Voice:        "Aoede",
//	    Declarations: capability.Declarations(),
//	    GoogleSearch: true,
//	})
//
//	client.OnToolCall(func(batch []live.FunctionCall) {
//	    // dispatch and later acknowledge with SendToolResponses
//	})
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Server frames arrive on a single goroutine in wire order, so a
// consumer that serializes its own state sees invocation batches in
// the order the agent issued them.
package live
