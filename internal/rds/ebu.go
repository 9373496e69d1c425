package rds

// EBU Latin character set (EN 50067 annex E, table E.1) mapped to Latin-1.
// Code points without a Latin-1 equivalent degrade to '.'; the table starts
// at 0x80, everything below is ASCII pass-through.
var ebuLatin = [128]byte{
	// 0x80: á à é è í ì ó ò ú ù Ñ Ç Ş β ¡ Ĳ
	0xE1, 0xE0, 0xE9, 0xE8, 0xED, 0xEC, 0xF3, 0xF2,
	0xFA, 0xF9, 0xD1, 0xC7, '.', 0xDF, 0xA1, '.',
	// 0x90: â ä ê ë î ï ô ö û ü ñ ç ş ǧ ı ĳ
	0xE2, 0xE4, 0xEA, 0xEB, 0xEE, 0xEF, 0xF4, 0xF6,
	0xFB, 0xFC, 0xF1, 0xE7, '.', '.', '.', '.',
	// 0xA0: ª α © ‰ Ǧ ě ň ő π € £ $ ← ↑ → ↓
	0xAA, '.', 0xA9, '.', '.', '.', '.', '.',
	'.', '.', 0xA3, '$', '.', '.', '.', '.',
	// 0xB0: º ¹ ² ³ ± İ ń ű µ ¿ ÷ ° ¼ ½ ¾ §
	0xBA, 0xB9, 0xB2, 0xB3, 0xB1, '.', '.', '.',
	0xB5, 0xBF, 0xF7, 0xB0, 0xBC, 0xBD, 0xBE, 0xA7,
	// 0xC0: Á À É È Í Ì Ó Ò Ú Ù Ř Č Š Ž Ð Ŀ
	0xC1, 0xC0, 0xC9, 0xC8, 0xCD, 0xCC, 0xD3, 0xD2,
	0xDA, 0xD9, '.', '.', '.', '.', 0xD0, '.',
	// 0xD0: Â Ä Ê Ë Î Ï Ô Ö Û Ü ř č š ž đ ŀ
	0xC2, 0xC4, 0xCA, 0xCB, 0xCE, 0xCF, 0xD4, 0xD6,
	0xDB, 0xDC, '.', '.', '.', '.', '.', '.',
	// 0xE0: Ã Å Æ Œ ŷ Ý Õ Ø Þ Ŋ Ŕ Ć Ś Ź Ŧ ð
	0xC3, 0xC5, 0xC6, '.', '.', 0xDD, 0xD5, 0xD8,
	0xDE, '.', '.', '.', '.', '.', '.', 0xF0,
	// 0xF0: ã å æ œ ŵ ý õ ø þ ŋ ŕ ć ś ź ŧ
	0xE3, 0xE5, 0xE6, '.', '.', 0xFD, 0xF5, 0xF8,
	0xFE, '.', '.', '.', '.', '.', '.', '.',
}

// ebuToLatin1 maps one EBU Latin byte to Latin-1. Control characters map to
// '.' like every other unrepresentable code point.
func ebuToLatin1(c byte) byte {
	if c >= 0x80 {
		return ebuLatin[c-0x80]
	}
	if c < 0x20 {
		return '.'
	}
	return c
}
