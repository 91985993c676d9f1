package segment

// GSM 03.38 default alphabet.
var gsm7Basic = func() map[rune]struct{} {
	const table = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
		"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"
	m := make(map[rune]struct{}, 128)
	for _, r := range table {
		m[r] = struct{}{}
	}
	return m
}()

// Extension table runes, sent as ESC + code and counted twice.
var gsm7Extension = map[rune]struct{}{
	'\f': {}, '^': {}, '{': {}, '}': {}, '\\': {}, '[': {}, '~': {}, ']': {}, '|': {}, '€': {},
}

// gsm7Length returns the septet count of text, or false when a rune is outside
// the GSM-7 repertoire.
func gsm7Length(text string) (int, bool) {
	n := 0
	for _, r := range text {
		if _, ok := gsm7Basic[r]; ok {
			n++
			continue
		}
		if _, ok := gsm7Extension[r]; ok {
			n += 2
			continue
		}
		return 0, false
	}
	return n, true
}
