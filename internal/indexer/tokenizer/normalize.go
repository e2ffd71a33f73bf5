package tokenizer

// accentFold maps the accented Latin letters of the corpus alphabet, in both
// cases, to their unaccented lowercase form. Any other multi-byte sequence is
// dropped.
var accentFold = map[string]byte{
	"á": 'a', "Á": 'a',
	"é": 'e', "É": 'e',
	"í": 'i', "Í": 'i',
	"ó": 'o', "Ó": 'o',
	"ú": 'u', "Ú": 'u',
	"ü": 'u', "Ü": 'u',
	"ñ": 'n', "Ñ": 'n',
}

// Normalize maps a raw word to its canonical token: ASCII is lower-cased and
// kept only when alphanumeric, table-listed accented letters fold to their
// base letter, and every other sequence is removed. The result only contains
// bytes in [a-z0-9] and may be empty.
func Normalize(raw []byte) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); {
		seq, n := decode(raw[i:])
		i += n
		if n == 1 {
			if c := toLower(seq[0]); isAlnum(c) {
				out = append(out, c)
			}
			continue
		}
		if folded, ok := accentFold[string(seq)]; ok {
			out = append(out, folded)
		}
	}
	return string(out)
}

// decode returns the byte sequence starting at b[0] and the number of bytes
// it consumes. The length comes from the high bits of the leading byte; a
// byte that is not a valid leading byte is consumed alone, and a sequence
// cut short by the end of input is clamped to what remains. No attempt is
// made to resynchronise after a malformed sequence.
func decode(b []byte) ([]byte, int) {
	n := sequenceLen(b[0])
	if n > len(b) {
		n = len(b)
	}
	return b[:n], n
}

func sequenceLen(lead byte) int {
	switch {
	case lead < 0x80:
		return 1
	case lead&0xE0 == 0xC0:
		return 2
	case lead&0xF0 == 0xE0:
		return 3
	case lead&0xF8 == 0xF0:
		return 4
	default:
		return 1
	}
}

func toLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
