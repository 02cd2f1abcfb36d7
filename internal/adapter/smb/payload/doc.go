// Package payload implements the per-command views of SMB1 messages handled
// by the handshake server.
//
// The set of payloads is closed: every type implementing Payload lives in
// this package, and DecodeRequest/DecodeResponse switch over the command
// byte to pick one. Each payload can decode itself from a message, populate
// a message for sending, and render itself for logs.
//
//	+--------------------+-------------------------+--------------------------+
//	| Command            | Request                 | Response                 |
//	+--------------------+-------------------------+--------------------------+
//	| NEGOTIATE          | NegotiateRequest        | NegotiateResponse        |
//	| SESSION_SETUP_ANDX | SessionSetupRequest     | SessionSetupResponse     |
//	| TREE_CONNECT_ANDX  | TreeConnectRequest      | TreeConnectResponse      |
//	| ECHO               | EchoRequest             | EchoResponse             |
//	| any (error reply)  |                         | NullPayload              |
//	+--------------------+-------------------------+--------------------------+
//
// Only terminal ANDX blocks are accepted: a request that chains a second
// command is rejected with types.ErrUnsupportedChaining.
package payload
