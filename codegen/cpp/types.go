package cpp

import (
	"fmt"

	"github.com/binschema/binschema/schema"
)

// scalarType returns the C++ fixed-width integer type for a scalar or
// bit-packed width/signedness pair. Bit-packed fields (width 1..7) widen
// to the smallest standard width that holds them, since C++ has no
// native sub-byte integer type — the bit-accurate packing lives entirely
// in BitReader/BitWriter, not in the member's storage type.
func scalarType(width int, signed bool) string {
	w := width
	switch {
	case w <= 8:
		w = 8
	case w <= 16:
		w = 16
	case w <= 32:
		w = 32
	default:
		w = 64
	}
	if signed {
		return fmt.Sprintf("int%d_t", w)
	}
	return fmt.Sprintf("uint%d_t", w)
}

// cppType returns the C++ member type for a field kind, recursing through
// array and string/blob shapes. A NamedStructKind maps to its own Name;
// unitName is only passed on to the recursive calls.
func cppType(unitName string, k schema.FieldKind) string {
	switch v := k.(type) {
	case schema.ScalarKind:
		return scalarType(v.Width, v.Signed == schema.Signed)
	case schema.BitsKind:
		return scalarType(v.Width, v.Signed == schema.Signed)
	case schema.FixedArrayKind:
		if isByteScalar(v.Elem) {
			return "std::vector<uint8_t>"
		}
		return "std::vector<" + cppType(unitName, v.Elem) + ">"
	case schema.DynamicArrayKind:
		if isByteScalar(v.Elem) {
			return "std::vector<uint8_t>"
		}
		return "std::vector<" + cppType(unitName, v.Elem) + ">"
	case schema.UntilArrayKind:
		return "std::vector<" + cppType(unitName, v.Elem) + ">"
	case schema.NamedStructKind:
		return v.Name
	case schema.StringKind:
		return "std::string"
	case schema.BlobKind:
		return "std::vector<uint8_t>"
	default:
		return "/* unknown */ void*"
	}
}

func isByteScalar(k schema.FieldKind) bool {
	s, ok := k.(schema.ScalarKind)
	return ok && s.Width == 8
}

// enumUnderlying returns the C++ underlying type of an enum.
func enumUnderlying(width int, signed bool) string {
	return scalarType(width, signed)
}
