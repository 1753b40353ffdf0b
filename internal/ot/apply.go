package ot

// Apply applies ops to content in order and returns the resulting text.
//
// Each position is read against the buffer produced by the operations before
// it in the same batch. Out-of-range positions never fail:
//   - an insert past the end appends
//   - a delete is clamped to the characters that exist
//
// Invalid operations are skipped. Apply has no side effects, and content
// comes back byte for byte when no operation changed it.
func Apply(content string, ops []Operation) string {
	if len(ops) == 0 {
		return content
	}

	buf := []rune(content)
	changed := false
	for _, op := range ops {
		if !op.Valid() {
			continue
		}

		switch op.Kind {
		case KindInsert:
			if op.Text != "" {
				buf = insertRunes(buf, op.Position, []rune(op.Text))
				changed = true
			}
		case KindDelete:
			if op.Position < len(buf) && op.Length > 0 {
				buf = deleteRunes(buf, op.Position, op.Length)
				changed = true
			}
		}
	}

	// Learning: string([]rune) turns invalid UTF-8 into U+FFFD, so only
	// re-encode when the buffer really moved
	if !changed {
		return content
	}
	return string(buf)
}

func insertRunes(buf []rune, pos int, text []rune) []rune {
	if len(text) == 0 {
		return buf
	}
	pos = min(pos, len(buf))

	out := make([]rune, 0, len(buf)+len(text))
	out = append(out, buf[:pos]...)
	out = append(out, text...)
	out = append(out, buf[pos:]...)
	return out
}

func deleteRunes(buf []rune, pos, length int) []rune {
	if pos >= len(buf) || length == 0 {
		return buf
	}
	end := pos + min(length, len(buf)-pos)

	out := make([]rune, 0, len(buf)-(end-pos))
	out = append(out, buf[:pos]...)
	out = append(out, buf[end:]...)
	return out
}
