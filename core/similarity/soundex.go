package similarity

// soundexCode maps a letter to its Soundex consonant group, or 0 for vowels
// and the letters h, w, y which do not produce a code.
func soundexCode(c byte) byte {
	switch c {
	case 'b', 'f', 'p', 'v':
		return '1'
	case 'c', 'g', 'j', 'k', 'q', 's', 'x', 'z':
		return '2'
	case 'd', 't':
		return '3'
	case 'l':
		return '4'
	case 'm', 'n':
		return '5'
	case 'r':
		return '6'
	}
	return 0
}

// Soundex maps a string to its 4-character phonetic code: the first letter,
// followed by the consonant-group digits of the remaining letters, with
// consecutive letters of the same group collapsed and the result padded with
// zeros. Non-letter characters are skipped. The empty string maps to the
// empty code.
func Soundex(s string) string {
	// Find the first letter; names like "2captcha" start with a digit.
	var letters []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c >= 'a' && c <= 'z' {
			letters = append(letters, c)
		}
	}
	if len(letters) == 0 {
		return ""
	}

	code := []byte{letters[0] - 'a' + 'A'}
	prev := soundexCode(letters[0])

	for _, c := range letters[1:] {
		d := soundexCode(c)
		if d != 0 && d != prev {
			code = append(code, d)
			if len(code) == 4 {
				break
			}
		}
		prev = d
	}

	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code)
}

// PhoneticSimilarity compares the Soundex codes of a and b character by
// character and returns the fraction of matching positions. It is a
// secondary signal only: phonetically close names are suggestive but far
// too noisy to feed into the combined score.
func PhoneticSimilarity(a, b string) float64 {
	ca, cb := Soundex(a), Soundex(b)
	if ca == "" && cb == "" {
		return 1
	}
	if ca == "" || cb == "" {
		return 0
	}

	matches := 0
	for i := 0; i < len(ca) && i < len(cb); i++ {
		if ca[i] == cb[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(ca))
}
