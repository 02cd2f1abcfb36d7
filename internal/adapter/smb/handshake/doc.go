// Package handshake implements the server side of the SMB1 connection
// handshake as a pure state machine.
//
//	AwaitNegotiate --NEGOTIATE--> AwaitSessionSetup --SESSION_SETUP_ANDX-->
//	AwaitTreeConnect --TREE_CONNECT_ANDX--> AwaitEcho --ECHO--> Complete
//
// Session.Handle consumes one decoded request and returns the reply to send.
// It performs no I/O and never blocks; reading and writing frames is the
// caller's job. Any error moves the session to Failed, after which every
// request is rejected. Once Complete, further ECHO requests are answered as
// keep-alives.
package handshake
