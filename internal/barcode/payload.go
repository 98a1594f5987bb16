/**
 * Barcode payloads
 *
 * The regenerated barcode of a fiscal shipment encodes its 44-digit access
 * key. Candidates come from the document text and from symbols decoded off
 * the page images, so they are cleaned before use.
 */

package barcode

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// PayloadDigits is the length of a valid access key payload
const PayloadDigits = 44

var (
	// ErrMalformedPayload is returned for candidates that are not 44 digits
	ErrMalformedPayload = errors.New("malformed barcode payload")
	// ErrUnsupportedCharacter is returned when Code128 cannot encode the data
	ErrUnsupportedCharacter = errors.New("character outside the Code128 set")
)

// ValidatePayload strips non-digits from raw and requires exactly 44 digits.
// An accepted payload validates to itself.
func ValidatePayload(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if len(digits) != PayloadDigits {
		return "", fmt.Errorf("%w: %d digits", ErrMalformedPayload, len(digits))
	}
	return digits, nil
}

// checkCharset reports whether every rune of data is printable ASCII
func checkCharset(data string) error {
	if data == "" {
		return fmt.Errorf("%w: empty data", ErrUnsupportedCharacter)
	}
	for _, r := range data {
		if r > unicode.MaxASCII || r < ' ' || r == 0x7f {
			return fmt.Errorf("%w: %q", ErrUnsupportedCharacter, r)
		}
	}
	return nil
}
