package session

import (
	"fmt"

	"codenow/internal/models"
)

// bufferStore holds the authoritative text per language and the shared
// language selection. Both keys always exist.
type bufferStore struct {
	buffers  map[models.Language]string
	active   models.Language
	maxBytes int
}

func newBufferStore(python, javascript string, active models.Language, maxBytes int) *bufferStore {
	if !active.Valid() {
		active = models.LangJavaScript
	}
	return &bufferStore{
		buffers: map[models.Language]string{
			models.LangPython:     python,
			models.LangJavaScript: javascript,
		},
		active:   active,
		maxBytes: maxBytes,
	}
}

func (b *bufferStore) snapshot() models.Snapshot {
	return models.Snapshot{
		Python:     b.buffers[models.LangPython],
		JavaScript: b.buffers[models.LangJavaScript],
		Language:   b.active,
	}
}

// replace swaps the whole buffer; there is no merge.
func (b *bufferStore) replace(lang models.Language, code string) error {
	if !lang.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	if b.maxBytes > 0 && len(code) > b.maxBytes {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(code))
	}
	b.buffers[lang] = code
	return nil
}

func (b *bufferStore) setActive(lang models.Language) error {
	if !lang.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	b.active = lang
	return nil
}
