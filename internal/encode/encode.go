// internal/encode/encode.go
package encode

// Alphabet is the canonical residue order shared by both stages.
const Alphabet = "ACDEFGHIKLMNPQRSTVWY"

const (
	PadToken     = 0  // binary-stage padding index
	UnknownToken = 21 // binary-stage index for any non-canonical symbol
	Width        = 21 // multiclass one-hot width: 20 canonical + pad column
	PadColumn    = 20

	ambiguousMass = 0.5
	unknownMass   = 0.05
)

// Tokens is the binary-stage input: one index per position, fixed length.
type Tokens []int32

// OneHot is the multiclass-stage input: a row-major Len×Width matrix.
type OneHot struct {
	Len  int
	Data []float32
}

// Row returns the Width-long slice for position i.
func (m OneHot) Row(i int) []float32 {
	return m.Data[i*Width : (i+1)*Width]
}

var (
	tokenOf  [256]int32   // 0 = not canonical
	columnOf [256]int8    // -1 = not canonical
	pairOf   [256][2]int8 // ambiguity codes, {-1,-1} when none
)

// ambiguity codes that stand for exactly two canonical residues
var ambiguous = map[byte]string{
	'B': "DN", // Asp or Asn
	'Z': "EQ", // Glu or Gln
	'J': "IL", // Ile or Leu
}

func init() {
	for i := range columnOf {
		columnOf[i] = -1
		pairOf[i] = [2]int8{-1, -1}
	}
	for i := 0; i < len(Alphabet); i++ {
		c := Alphabet[i]
		tokenOf[c] = int32(i + 1)
		tokenOf[c|0x20] = int32(i + 1)
		columnOf[c] = int8(i)
		columnOf[c|0x20] = int8(i)
	}
	for code, pair := range ambiguous {
		p := [2]int8{columnOf[pair[0]], columnOf[pair[1]]}
		pairOf[code] = p
		pairOf[code|0x20] = p
	}
}

// Binary maps residues to indices 1..20 (Alphabet order), anything else to
// UnknownToken, then truncates or right-pads with PadToken to maxLen.
func Binary(residues []byte, maxLen int) Tokens {
	if maxLen < 0 {
		maxLen = 0
	}
	out := make(Tokens, maxLen)
	n := min(len(residues), maxLen)
	for i := 0; i < n; i++ {
		t := tokenOf[residues[i]]
		if t == 0 {
			t = UnknownToken
		}
		out[i] = t
	}
	return out
}

// Multi builds the maxLen×Width matrix for the multiclass stage.
//
// Canonical residues are one-hot, B/Z/J split 0.5/0.5 over their two
// residues, any other symbol spreads 0.05 over the 20 canonical columns.
// Positions past the end of the sequence put 1.0 in PadColumn; the binary
// stage pads with index 0 instead.
func Multi(residues []byte, maxLen int) OneHot {
	if maxLen < 0 {
		maxLen = 0
	}
	m := OneHot{Len: maxLen, Data: make([]float32, maxLen*Width)}
	n := min(len(residues), maxLen)
	for i := 0; i < n; i++ {
		row := m.Row(i)
		c := residues[i]
		switch {
		case columnOf[c] >= 0:
			row[columnOf[c]] = 1
		case pairOf[c][0] >= 0:
			row[pairOf[c][0]] = ambiguousMass
			row[pairOf[c][1]] = ambiguousMass
		default:
			for j := 0; j < PadColumn; j++ {
				row[j] = unknownMass
			}
		}
	}
	for i := n; i < maxLen; i++ {
		m.Data[i*Width+PadColumn] = 1
	}
	return m
}
