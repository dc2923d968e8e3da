package protocol

// Range-checked field types. Invalid values are rejected at construction,
// never at encode time, so an in-memory Address/Parameter/Value is always
// representable on the wire.

// Address identifies one node on the bus, range [0, 99]. On the wire each of
// its two decimal digits is transmitted twice ("4433" for address 43), which
// gives the selection sequence a cheap redundancy check.
type Address uint8

// Wildcard is the listen-to-all node address. A node configured with
// address 0 accepts commands for every station.
const Wildcard Address = 0

// NewAddress validates n and returns it as an Address.
func NewAddress(n int) (Address, error) {
	if n < 0 || n > MaxAddress {
		return 0, Errorf(KindInvalidAddress, "address %d outside [0, %d]", n, MaxAddress)
	}
	return Address(n), nil
}

// Wire returns the doubled-digit wire representation.
func (a Address) Wire() [AddressWidth]byte {
	var b [AddressWidth]byte
	b[0] = '0' + byte(a)/10
	b[1] = b[0]
	b[2] = '0' + byte(a)%10
	b[3] = b[2]
	return b
}

// ParseAddress decodes a doubled-digit address field. The digit doubling is
// verified; a mismatch means line corruption and is reported as a framing
// error.
func ParseAddress(b []byte) (Address, error) {
	if len(b) != AddressWidth {
		return 0, Errorf(KindFraming, "address field is %d bytes, want %d", len(b), AddressWidth)
	}
	tens, err := DigitValue(b[0])
	if err != nil {
		return 0, err
	}
	ones, err := DigitValue(b[2])
	if err != nil {
		return 0, err
	}
	if b[0] != b[1] || b[2] != b[3] {
		return 0, Errorf(KindFraming, "address digits not doubled: %q", b)
	}
	return Address(tens*10 + ones), nil
}

// Parameter identifies one register on a node, range [0, 9999].
type Parameter int16

// NewParameter validates n and returns it as a Parameter.
func NewParameter(n int) (Parameter, error) {
	if n < 0 || n > MaxParameter {
		return 0, Errorf(KindInvalidParameter, "parameter %d outside [0, %d]", n, MaxParameter)
	}
	return Parameter(n), nil
}

// Wire returns the four-digit wire representation.
func (p Parameter) Wire() [ParameterWidth]byte {
	var b [ParameterWidth]byte
	x := int(p)
	for i := ParameterWidth - 1; i >= 0; i-- {
		b[i] = '0' + byte(x%10)
		x /= 10
	}
	return b
}

// ParseParameter decodes a four-digit parameter field.
func ParseParameter(b []byte) (Parameter, error) {
	if len(b) != ParameterWidth {
		return 0, Errorf(KindFraming, "parameter field is %d bytes, want %d", len(b), ParameterWidth)
	}
	n := 0
	for _, c := range b {
		d, err := DigitValue(c)
		if err != nil {
			return 0, err
		}
		n = n*10 + d
	}
	return Parameter(n), nil
}

// Next returns the following parameter number, or false at the top of the
// range.
func (p Parameter) Next() (Parameter, bool) {
	if p >= MaxParameter {
		return 0, false
	}
	return p + 1, true
}

// Prev returns the preceding parameter number, or false at zero.
func (p Parameter) Prev() (Parameter, bool) {
	if p <= 0 {
		return 0, false
	}
	return p - 1, true
}

// Offset applies a read-again offset (-1, 0 or +1) to p.
func (p Parameter) Offset(d int) (Parameter, bool) {
	n := int(p) + d
	if n < 0 || n > MaxParameter {
		return 0, false
	}
	return Parameter(n), true
}

// ValueFormat selects the wire encoding of a Value.
type ValueFormat int

const (
	// FormatNormal uses as few bytes as possible, with a leading sign
	// whenever it fits in the six-byte field.
	FormatNormal ValueFormat = iota
	// FormatWide always occupies the full six bytes.
	FormatWide
)

// minNormal is the most negative value the Normal format can carry: a sign
// plus five digits.
const minNormal = -9999

// Value is a parameter value, range [-99999, 999999]. The bounds follow from
// the six-character wire field; values below -9999 are forced to the Wide
// format because the sign leaves room for only four digits otherwise.
type Value struct {
	n      int32
	format ValueFormat
}

// NewValue validates n and returns it as a Value in the Normal format.
func NewValue(n int) (Value, error) {
	if n < MinValue || n > MaxValue {
		return Value{}, Errorf(KindValueOutOfRange, "value %d outside [%d, %d]", n, MinValue, MaxValue)
	}
	f := FormatNormal
	if n < minNormal {
		f = FormatWide
	}
	return Value{n: int32(n), format: f}, nil
}

// NewValueFormat validates n against the requested wire format.
func NewValueFormat(n int, format ValueFormat) (Value, error) {
	v, err := NewValue(n)
	if err != nil {
		return Value{}, err
	}
	if format == FormatNormal && n < minNormal {
		return Value{}, Errorf(KindValueOutOfRange, "value %d does not fit the normal format", n)
	}
	v.format = format
	return v, nil
}

// Int returns the numeric value.
func (v Value) Int() int { return int(v.n) }

// Format returns the wire format the value will encode with.
func (v Value) Format() ValueFormat { return v.format }

// Equal compares numeric values, ignoring format.
func (v Value) Equal(o Value) bool { return v.n == o.n }

// Wire encodes the value. It returns the six-byte scratch array and the
// number of bytes actually used.
func (v Value) Wire() ([MaxValueWidth]byte, int) {
	var b [MaxValueWidth]byte
	x := v.n
	if x < 0 {
		x = -x
	}
	// digits, least significant first
	i := MaxValueWidth
	for {
		i--
		b[i] = '0' + byte(x%10)
		x /= 10
		if x == 0 && (v.format == FormatNormal || i <= 1) {
			break
		}
	}
	if v.n < 0 {
		i--
		b[i] = '-'
	} else if i > 0 {
		i--
		b[i] = '+'
	}
	copy(b[:], b[i:])
	return b, MaxValueWidth - i
}

// ParseValue decodes a value field: an optional leading sign followed by
// decimal digits, at most six bytes in total.
func ParseValue(b []byte) (Value, error) {
	if len(b) == 0 || len(b) > MaxValueWidth {
		return Value{}, Errorf(KindFraming, "value field is %d bytes, want 1..%d", len(b), MaxValueWidth)
	}
	neg := false
	digits := b
	switch b[0] {
	case '-':
		neg = true
		digits = b[1:]
	case '+':
		digits = b[1:]
	}
	if len(digits) == 0 {
		return Value{}, Errorf(KindFraming, "value field %q has no digits", b)
	}
	n := 0
	for _, c := range digits {
		d, err := DigitValue(c)
		if err != nil {
			return Value{}, err
		}
		n = n*10 + d
	}
	if neg {
		n = -n
	}
	return NewValue(n)
}

// DigitValue converts an ASCII decimal digit to its numeric value.
func DigitValue(b byte) (int, error) {
	if b < '0' || b > '9' {
		return 0, Errorf(KindInvalidDigit, "byte 0x%02x is not a decimal digit", b)
	}
	return int(b - '0'), nil
}
