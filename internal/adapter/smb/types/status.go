package types

import "fmt"

// =============================================================================
// Status Codes
// =============================================================================

// Status is the 32-bit status field of the SMB1 header.
//
// When Flags2 carries NT_STATUS the value is an NT_STATUS code:
//   - Severity (bits 30-31): 00=Success, 01=Informational, 10=Warning, 11=Error
//   - Customer (bit 29): 0=Microsoft-defined, 1=Customer-defined
//   - Facility (bits 16-28): Component that generated the status
//   - Code (bits 0-15): Status code within the facility
//
// Otherwise it is a DOS error: ErrorClass in the low byte, a reserved byte,
// and a 16-bit ErrorCode in the upper half.
//
// [MS-ERREF] Section 2.3, [MS-CIFS] Section 2.2.1.4
type Status uint32

const (
	// StatusSuccess indicates the operation completed successfully.
	StatusSuccess Status = 0x00000000

	// StatusNotImplemented indicates the command is not implemented.
	StatusNotImplemented Status = 0xC0000002

	// StatusInvalidParameter indicates a parameter is invalid.
	StatusInvalidParameter Status = 0xC000000D

	// StatusAccessDenied indicates the caller lacks required permissions.
	StatusAccessDenied Status = 0xC0000022

	// StatusLogonFailure indicates the session could not be established.
	StatusLogonFailure Status = 0xC000006D

	// StatusNotSupported indicates the request is not supported.
	StatusNotSupported Status = 0xC00000BB

	// StatusBadNetworkName indicates the share or service was not found.
	StatusBadNetworkName Status = 0xC00000CC

	// StatusRequestNotAccepted indicates the server cannot accept the request.
	StatusRequestNotAccepted Status = 0xC00000D0

	// StatusInternalError indicates an internal server error.
	StatusInternalError Status = 0xC00000E5
)

// DOS error classes.
const (
	ErrClassDOS uint8 = 0x01
	ErrClassSRV uint8 = 0x02
	ErrClassHRD uint8 = 0x03
	ErrClassCMD uint8 = 0xFF
)

var statusNames = map[Status]string{
	StatusSuccess:            "STATUS_SUCCESS",
	StatusNotImplemented:     "STATUS_NOT_IMPLEMENTED",
	StatusInvalidParameter:   "STATUS_INVALID_PARAMETER",
	StatusAccessDenied:       "STATUS_ACCESS_DENIED",
	StatusLogonFailure:       "STATUS_LOGON_FAILURE",
	StatusNotSupported:       "STATUS_NOT_SUPPORTED",
	StatusBadNetworkName:     "STATUS_BAD_NETWORK_NAME",
	StatusRequestNotAccepted: "STATUS_REQUEST_NOT_ACCEPTED",
	StatusInternalError:      "STATUS_INTERNAL_ERROR",
}

// DOSStatus builds a status in DOS form from an error class and code.
func DOSStatus(class uint8, code uint16) Status {
	return Status(uint32(class) | uint32(code)<<16)
}

// DOSClass returns the ErrorClass byte of a DOS-form status.
func (s Status) DOSClass() uint8 { return uint8(s) }

// DOSCode returns the ErrorCode of a DOS-form status.
func (s Status) DOSCode() uint16 { return uint16(s >> 16) }

// IsError reports whether the status describes a failure. ntStatus selects
// the interpretation, normally taken from the NT_STATUS bit of Flags2.
func (s Status) IsError(ntStatus bool) bool {
	if ntStatus {
		return s>>30 == 0b11
	}
	return s.DOSClass() != 0
}

// IsSuccess reports whether the status is zero.
func (s Status) IsSuccess() bool { return s == StatusSuccess }

// String returns the symbolic name of well-known NT status codes.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("0x%08X", uint32(s))
}
