// Package types contains SMB1 protocol constants, types, and error codes
// used by the handshake server.
//
// # Overview
//
// This package provides type-safe definitions for the SMB1 elements the
// server understands:
//
//   - Command codes (NEGOTIATE, SESSION_SETUP_ANDX, TREE_CONNECT_ANDX, ECHO)
//   - Header flags and Flags2 bits
//   - Capability and optional-support bits
//   - Status codes in both NT and DOS form
//   - FILETIME conversion utilities
//   - The error taxonomy shared by the codec and the state machine
//
// # Status Codes
//
// The 32-bit status field carries an NT_STATUS when the NT_STATUS bit is set
// in Flags2, and a DOS error otherwise:
//
//	NT:  Bits 31-30 severity (11 = error), 29 customer, 28-16 facility, 15-0 code
//	DOS: byte 0 ErrorClass, byte 1 reserved, bytes 2-3 ErrorCode
//
// # References
//
//   - [MS-CIFS] Common Internet File System Protocol
//   - [MS-SMB] Server Message Block Protocol
//   - [MS-ERREF] Windows Error Codes
package types
