// Package options provides OCC option symbol parsing and formatting.
package options

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/avramidis/optsentry/internal/domain"
)

// ErrNotOptionSymbol is returned when an identifier does not match the
// fixed-width OCC grammar. Callers treat these legs as plain equity lines.
var ErrNotOptionSymbol = errors.New("not an option symbol")

// occTailLen is the fixed suffix: YYMMDD + C/P + 8-digit strike
const occTailLen = 15

// ParsedSymbol is the decoded form of an OCC option identifier
type ParsedSymbol struct {
	Underlying string
	Expiration time.Time
	Right      domain.Right
	Strike     float64
}

// Parse decodes an OCC identifier of the form
// <underlying><padding><YYMMDD><C|P><8-digit strike>, e.g. "AAPL  241220C00150000".
// The whole string must match - no partial parses. The strike field encodes
// price multiplied by 1000.
func Parse(symbol string) (ParsedSymbol, error) {
	if len(symbol) <= occTailLen {
		return ParsedSymbol{}, fmt.Errorf("%w: %q", ErrNotOptionSymbol, symbol)
	}

	head := symbol[:len(symbol)-occTailLen]
	tail := symbol[len(symbol)-occTailLen:]

	underlying := strings.TrimRight(head, " ")
	if underlying == "" || strings.ContainsRune(underlying, ' ') {
		return ParsedSymbol{}, fmt.Errorf("%w: %q", ErrNotOptionSymbol, symbol)
	}
	for _, r := range underlying {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '.' && r != '/' {
			return ParsedSymbol{}, fmt.Errorf("%w: %q", ErrNotOptionSymbol, symbol)
		}
	}

	dateStr := tail[:6]
	right := tail[6]
	strikeStr := tail[7:]

	if !isAllDigits(dateStr) || !isAllDigits(strikeStr) {
		return ParsedSymbol{}, fmt.Errorf("%w: %q", ErrNotOptionSymbol, symbol)
	}
	if right != 'C' && right != 'P' {
		return ParsedSymbol{}, fmt.Errorf("%w: %q", ErrNotOptionSymbol, symbol)
	}

	expiration, err := time.Parse("060102", dateStr)
	if err != nil {
		return ParsedSymbol{}, fmt.Errorf("%w: invalid expiration in %q", ErrNotOptionSymbol, symbol)
	}

	strikeThousandths, err := strconv.ParseInt(strikeStr, 10, 64)
	if err != nil {
		return ParsedSymbol{}, fmt.Errorf("%w: invalid strike in %q", ErrNotOptionSymbol, symbol)
	}

	parsed := ParsedSymbol{
		Underlying: underlying,
		Expiration: expiration.UTC(),
		Right:      domain.RightCall,
		Strike:     float64(strikeThousandths) / 1000.0,
	}
	if right == 'P' {
		parsed.Right = domain.RightPut
	}

	return parsed, nil
}

// Format builds the OCC identifier for the given contract. The underlying is
// not padded - brokers accept both padded and compact forms.
func Format(underlying string, expiration time.Time, right domain.Right, strike float64) string {
	r := "C"
	if right == domain.RightPut {
		r = "P"
	}
	return fmt.Sprintf("%s%s%s%08d",
		strings.ToUpper(underlying),
		expiration.Format("060102"),
		r,
		int64(strike*1000+0.5),
	)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
