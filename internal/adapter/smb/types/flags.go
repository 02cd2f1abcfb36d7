package types

// HeaderFlags is the 8-bit Flags field of the SMB1 header.
type HeaderFlags uint8

const (
	FlagsLockAndReadOK      HeaderFlags = 0x01
	FlagsBufAvail           HeaderFlags = 0x02
	FlagsCaseInsensitive    HeaderFlags = 0x08
	FlagsCanonicalizedPaths HeaderFlags = 0x10
	FlagsOplock             HeaderFlags = 0x20
	FlagsOpbatch            HeaderFlags = 0x40

	// FlagsReply marks a message sent by the server.
	FlagsReply HeaderFlags = 0x80
)

// Has reports whether all bits in f are set.
func (h HeaderFlags) Has(f HeaderFlags) bool { return h&f == f }

// Flags2 is the 16-bit Flags2 field of the SMB1 header.
type Flags2 uint16

const (
	Flags2LongNames         Flags2 = 0x0001
	Flags2EAs               Flags2 = 0x0002
	Flags2SecuritySignature Flags2 = 0x0004
	Flags2IsLongName        Flags2 = 0x0040
	Flags2DFS               Flags2 = 0x1000
	Flags2PagingIO          Flags2 = 0x2000

	// Flags2ExtendedSecurity requests SPNEGO security blobs.
	Flags2ExtendedSecurity Flags2 = 0x0800

	// Flags2NTStatus selects NT_STATUS codes over DOS errors.
	Flags2NTStatus Flags2 = 0x4000

	// Flags2Unicode selects UTF-16LE strings over OEM strings.
	Flags2Unicode Flags2 = 0x8000
)

// Has reports whether all bits in f are set.
func (h Flags2) Has(f Flags2) bool { return h&f == f }

// Capabilities is the capability bitmask exchanged during NEGOTIATE and
// SESSION_SETUP_ANDX.
//
// [MS-CIFS] Section 2.2.4.52.2
type Capabilities uint32

const (
	CapRawMode          Capabilities = 0x00000001
	CapMpxMode          Capabilities = 0x00000002
	CapUnicode          Capabilities = 0x00000004
	CapLargeFiles       Capabilities = 0x00000008
	CapNTSMBs           Capabilities = 0x00000010
	CapRPCRemoteAPIs    Capabilities = 0x00000020
	CapStatus32         Capabilities = 0x00000040
	CapLevelIIOplocks   Capabilities = 0x00000080
	CapLockAndRead      Capabilities = 0x00000100
	CapNTFind           Capabilities = 0x00000200
	CapDFS              Capabilities = 0x00001000
	CapLargeReadX       Capabilities = 0x00004000
	CapLargeWriteX      Capabilities = 0x00008000
	CapExtendedSecurity Capabilities = 0x80000000
)

// Has reports whether all bits in c are set.
func (c Capabilities) Has(other Capabilities) bool { return c&other == other }

// SubsetOf reports whether every bit of c is also set in other.
func (c Capabilities) SubsetOf(other Capabilities) bool { return c&^other == 0 }

// OptionalSupport is the bitmask returned in a TREE_CONNECT_ANDX response.
type OptionalSupport uint16

// SupportSearchBits tells the client the share honors search attributes.
const SupportSearchBits OptionalSupport = 0x0001

// SecurityMode is the SecurityMode byte of a NEGOTIATE response. Zero means
// share-level security with plaintext passwords, which the server uses to
// advertise that it performs no authentication.
type SecurityMode uint8

const (
	SecurityModeUserLevel         SecurityMode = 0x01
	SecurityModeEncryptPasswords  SecurityMode = 0x02
	SecurityModeSignaturesEnabled SecurityMode = 0x04
)

// Service type strings accepted in TREE_CONNECT_ANDX.
const (
	ServiceAny  = "?????"
	ServiceDisk = "A:"
)

// DialectNTLM012 is the only dialect the server speaks.
const DialectNTLM012 = "NT LM 0.12"
