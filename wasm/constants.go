package wasm

// Magic is the wasm binary magic number ("\0asm") followed by version 1.
var Magic = []byte{0x00, 0x61, 0x73, 0x6D}

// Version is the supported wasm binary format version, little-endian.
var Version = []byte{0x01, 0x00, 0x00, 0x00}

// Section IDs. Sections must appear in increasing order by ID (except custom
// sections).
const (
	SectionCustom   byte = 0
	SectionType     byte = 1
	SectionImport   byte = 2
	SectionFunction byte = 3
	SectionTable    byte = 4
	SectionMemory   byte = 5
	SectionGlobal   byte = 6
	SectionExport   byte = 7
	SectionStart    byte = 8
	SectionElement  byte = 9
	SectionCode     byte = 10
	SectionData     byte = 11
)

// Import/export descriptor kinds.
const (
	KindFunc   byte = 0
	KindTable  byte = 1
	KindMemory byte = 2
	KindGlobal byte = 3
)

// Value type encodings. Core number types use 0x7F-0x7C, reference types
// 0x70-0x63 (GC proposal included).
const (
	ValI32       byte = 0x7F
	ValI64       byte = 0x7E
	ValF32       byte = 0x7D
	ValF64       byte = 0x7C
	ValFuncRef   byte = 0x70
	ValExternRef byte = 0x6F
	ValAnyRef    byte = 0x6E
	ValEqRef     byte = 0x6D
	ValI31Ref    byte = 0x6C
	ValStructRef byte = 0x6B
	ValArrayRef  byte = 0x6A

	// (ref ht) and (ref null ht): a heap type immediate follows.
	ValRef     byte = 0x64
	ValRefNull byte = 0x63
)

// Type section composite type discriminators (GC proposal).
const (
	FuncTypeByte   byte = 0x60
	StructTypeByte byte = 0x5F
	ArrayTypeByte  byte = 0x5E
	RecTypeByte    byte = 0x4E
	SubTypeByte    byte = 0x50
	SubFinalByte   byte = 0x4F
)

// Field mutability for GC struct/array fields.
const (
	FieldImmutable byte = 0x00
	FieldMutable   byte = 0x01
)

// BlockTypeVoid is the empty block type.
const BlockTypeVoid byte = 0x40

// Plain opcodes used by the WAT subset this pipeline compiles.
const (
	OpUnreachable byte = 0x00
	OpNop         byte = 0x01
	OpBlock       byte = 0x02
	OpLoop        byte = 0x03
	OpIf          byte = 0x04
	OpElse        byte = 0x05
	OpEnd         byte = 0x0B
	OpBr          byte = 0x0C
	OpBrIf        byte = 0x0D
	OpReturn      byte = 0x0F
	OpCall        byte = 0x10

	OpDrop   byte = 0x1A
	OpSelect byte = 0x1B

	OpLocalGet  byte = 0x20
	OpLocalSet  byte = 0x21
	OpLocalTee  byte = 0x22
	OpGlobalGet byte = 0x23
	OpGlobalSet byte = 0x24

	OpI32Load  byte = 0x28
	OpI64Load  byte = 0x29
	OpF32Load  byte = 0x2A
	OpF64Load  byte = 0x2B
	OpI32Store byte = 0x36
	OpI64Store byte = 0x37
	OpF32Store byte = 0x38
	OpF64Store byte = 0x39

	OpMemorySize byte = 0x3F
	OpMemoryGrow byte = 0x40

	OpI32Const byte = 0x41
	OpI64Const byte = 0x42
	OpF32Const byte = 0x43
	OpF64Const byte = 0x44

	OpI32Eqz byte = 0x45
	OpI32Eq  byte = 0x46
	OpI32Ne  byte = 0x47
	OpI32LtS byte = 0x48
	OpI32LtU byte = 0x49
	OpI32GtS byte = 0x4A
	OpI32GtU byte = 0x4B
	OpI32LeS byte = 0x4C
	OpI32LeU byte = 0x4D
	OpI32GeS byte = 0x4E
	OpI32GeU byte = 0x4F

	OpI64Eqz byte = 0x50
	OpI64Eq  byte = 0x51
	OpI64Ne  byte = 0x52
	OpI64LtS byte = 0x53
	OpI64GtS byte = 0x55
	OpI64LeS byte = 0x57
	OpI64GeS byte = 0x59

	OpF32Eq byte = 0x5B
	OpF32Ne byte = 0x5C
	OpF32Lt byte = 0x5D
	OpF32Gt byte = 0x5E
	OpF32Le byte = 0x5F
	OpF32Ge byte = 0x60

	OpF64Eq byte = 0x61
	OpF64Ne byte = 0x62
	OpF64Lt byte = 0x63
	OpF64Gt byte = 0x64
	OpF64Le byte = 0x65
	OpF64Ge byte = 0x66

	OpI32Add  byte = 0x6A
	OpI32Sub  byte = 0x6B
	OpI32Mul  byte = 0x6C
	OpI32DivS byte = 0x6D
	OpI32DivU byte = 0x6E
	OpI32RemS byte = 0x6F
	OpI32RemU byte = 0x70
	OpI32And  byte = 0x71
	OpI32Or   byte = 0x72
	OpI32Xor  byte = 0x73
	OpI32Shl  byte = 0x74
	OpI32ShrS byte = 0x75
	OpI32ShrU byte = 0x76

	OpI64Add  byte = 0x7C
	OpI64Sub  byte = 0x7D
	OpI64Mul  byte = 0x7E
	OpI64DivS byte = 0x7F
	OpI64And  byte = 0x83
	OpI64Or   byte = 0x84
	OpI64Xor  byte = 0x85

	OpF32Abs  byte = 0x8B
	OpF32Neg  byte = 0x8C
	OpF32Sqrt byte = 0x91
	OpF32Add  byte = 0x92
	OpF32Sub  byte = 0x93
	OpF32Mul  byte = 0x94
	OpF32Div  byte = 0x95
	OpF32Min  byte = 0x96
	OpF32Max  byte = 0x97

	OpF64Abs  byte = 0x99
	OpF64Neg  byte = 0x9A
	OpF64Sqrt byte = 0x9F
	OpF64Add  byte = 0xA0
	OpF64Sub  byte = 0xA1
	OpF64Mul  byte = 0xA2
	OpF64Div  byte = 0xA3
	OpF64Min  byte = 0xA4
	OpF64Max  byte = 0xA5

	OpI32WrapI64    byte = 0xA7
	OpI64ExtendI32S byte = 0xAC
	OpI64ExtendI32U byte = 0xAD

	OpRefNull   byte = 0xD0
	OpRefIsNull byte = 0xD1
	OpRefFunc   byte = 0xD2
)

// OpPrefixGC introduces GC proposal instructions; a LEB128 sub-opcode
// follows.
const OpPrefixGC byte = 0xFB

// GC sub-opcodes (0xFB prefix).
const (
	GCStructNew        uint32 = 0x00
	GCStructNewDefault uint32 = 0x01
	GCStructGet        uint32 = 0x02
	GCStructGetS       uint32 = 0x03
	GCStructGetU       uint32 = 0x04
	GCStructSet        uint32 = 0x05
	GCRefCast          uint32 = 0x16
	GCRefCastNull      uint32 = 0x17
)

// Abstract heap types, encoded as negative s33 immediates of ref types.
const (
	HeapTypeFunc   int64 = -16 // 0x70
	HeapTypeExtern int64 = -17 // 0x6F
	HeapTypeAny    int64 = -18 // 0x6E
	HeapTypeEq     int64 = -19 // 0x6D
	HeapTypeStruct int64 = -21 // 0x6B
	HeapTypeArray  int64 = -22 // 0x6A
)
